package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) Chat(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Deliver(ctx context.Context, to model.Recipient, msg Message) error {
	args := m.Called(ctx, to, msg)
	return args.Error(0)
}

type MockBot struct {
	mock.Mock
}

func (m *MockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func payload(kind Kind) Payload {
	return Payload{
		Kind:           kind,
		UserID:         "user-1",
		RegimenID:      "reg-1",
		MedicationName: "Metformin",
		Dosage:         model.Dosage{Amount: 500, Unit: "mg"},
		ScheduledTime:  time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestTemplateComposer(t *testing.T) {
	ctx := context.Background()

	msg, err := NewTemplateComposer().Compose(ctx, payload(KindUpcoming))
	require.NoError(t, err)
	assert.Equal(t, "Upcoming dose: Metformin", msg.Subject)
	assert.Equal(t, "Reminder: take 500 mg of Metformin at 08:00.", msg.Body)

	late := 45
	p := payload(KindOverdue)
	p.MinutesLate = &late
	msg, err = NewTemplateComposer().Compose(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Missed dose: Metformin", msg.Subject)
	assert.Contains(t, msg.Body, "45 minutes ago")
}

func TestAIComposer_FallsBackOnError(t *testing.T) {
	client := new(MockChatClient)
	client.On("Chat", mock.Anything, reminderSystemPrompt, mock.Anything).Return("", errors.New("rate limit exceeded"))
	composer := NewAIComposer(client, NewTemplateComposer(), time.Second, zap.NewNop())

	msg, err := composer.Compose(context.Background(), payload(KindUpcoming))

	require.NoError(t, err)
	assert.Equal(t, "Reminder: take 500 mg of Metformin at 08:00.", msg.Body)
	client.AssertExpectations(t)
}

func TestAIComposer_UsesModelText(t *testing.T) {
	client := new(MockChatClient)
	client.On("Chat", mock.Anything, reminderSystemPrompt, mock.Anything).Return("  Time for your Metformin!  ", nil)
	composer := NewAIComposer(client, NewTemplateComposer(), time.Second, zap.NewNop())

	msg, err := composer.Compose(context.Background(), payload(KindUpcoming))

	require.NoError(t, err)
	assert.Equal(t, "Time for your Metformin!", msg.Body)
	assert.Equal(t, "Upcoming dose: Metformin", msg.Subject)
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	email := new(MockSender)
	push := new(MockSender)
	to := model.Recipient{UserID: "user-1", Email: "a@example.com", TelegramChatID: 42}

	email.On("Deliver", mock.Anything, to, mock.Anything).Return(nil)
	push.On("Deliver", mock.Anything, to, mock.Anything).Return(errors.New("bot blocked"))

	d := NewDispatcher(nil, zap.NewNop())
	d.Register(model.ChannelEmail, email)
	d.Register(model.ChannelPush, push)

	assert.NoError(t, d.Send(context.Background(), to, model.ChannelEmail, payload(KindUpcoming)))

	err := d.Send(context.Background(), to, model.ChannelPush, payload(KindUpcoming))
	var derr *DeliveryError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, model.ChannelPush, derr.Channel)
	assert.Equal(t, "user-1", derr.UserID)

	email.AssertExpectations(t)
	push.AssertExpectations(t)
	assert.Equal(t, []model.Channel{model.ChannelEmail, model.ChannelPush}, d.Channels())
}

func TestDispatcher_UnconfiguredChannel(t *testing.T) {
	d := NewDispatcher(NewTemplateComposer(), zap.NewNop())

	err := d.Send(context.Background(), model.Recipient{UserID: "user-1"}, model.ChannelEmail, payload(KindUpcoming))

	assert.True(t, errors.Is(err, ErrChannelUnavailable))
}

func TestEmailSender_Deliver(t *testing.T) {
	sender, err := NewEmailSender(SMTPConfig{Host: "smtp.example.com", From: "eva@example.com"}, zap.NewNop())
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err = sender.Deliver(context.Background(), model.Recipient{UserID: "user-1", Email: "pat@example.com"},
		Message{Subject: "Upcoming dose: Metformin", Body: "Take it"})

	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"pat@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: Upcoming dose: Metformin\r\n"))

	err = sender.Deliver(context.Background(), model.Recipient{UserID: "user-2"}, Message{})
	assert.True(t, errors.Is(err, ErrNoAddress))
}

func TestNewEmailSender_Validation(t *testing.T) {
	_, err := NewEmailSender(SMTPConfig{From: "eva@example.com"}, zap.NewNop())
	assert.Error(t, err)
}

func TestTelegramSender_Deliver(t *testing.T) {
	bot := new(MockBot)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.ParseMode == tgbotapi.ModeMarkdown
	})).Return(nil)
	sender := NewTelegramSender(bot, zap.NewNop())

	err := sender.Deliver(context.Background(), model.Recipient{UserID: "user-1", TelegramChatID: 42}, Message{Subject: "s", Body: "b"})
	require.NoError(t, err)
	bot.AssertExpectations(t)

	err = sender.Deliver(context.Background(), model.Recipient{UserID: "user-1"}, Message{})
	assert.True(t, errors.Is(err, ErrNoAddress))
}
