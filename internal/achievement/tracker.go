package achievement

// Input is the history summary achievements are evaluated against
type Input struct {
	TakenCount    int
	OnTimeCount   int
	CurrentStreak int
	WeeklyRate    float64
	WeeklyTotal   int
	MonthlyRate   float64
	MonthlyTotal  int
}

// Achievement is the evaluated state of one rule
type Achievement struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Progress    float64 `json:"progress"`
	Target      float64 `json:"target"`
	Unlocked    bool    `json:"unlocked"`
}

type rule struct {
	id          string
	title       string
	description string
	target      float64
	value       func(Input) float64
	hasData     func(Input) bool
}

var rules = []rule{
	{
		id: "first_dose", title: "First Dose", description: "Log your first taken dose",
		target: 1, value: func(in Input) float64 { return float64(in.TakenCount) },
	},
	{
		id: "perfect_timing", title: "Perfect Timing", description: "Take 10 doses within 15 minutes of schedule",
		target: 10, value: func(in Input) float64 { return float64(in.OnTimeCount) },
	},
	{
		id: "week_streak", title: "Week Warrior", description: "Keep a 7-day perfect streak",
		target: 7, value: func(in Input) float64 { return float64(in.CurrentStreak) },
	},
	{
		id: "month_streak", title: "Monthly Master", description: "Keep a 30-day perfect streak",
		target: 30, value: func(in Input) float64 { return float64(in.CurrentStreak) },
	},
	{
		id: "dose_century", title: "Century", description: "Take 100 doses",
		target: 100, value: func(in Input) float64 { return float64(in.TakenCount) },
	},
	{
		id: "weekly_consistency", title: "Consistent Week", description: "Reach 90% adherence over the last 7 days",
		target: 90, value: func(in Input) float64 { return in.WeeklyRate },
		hasData: func(in Input) bool { return in.WeeklyTotal > 0 },
	},
	{
		id: "monthly_consistency", title: "Consistent Month", description: "Reach 95% adherence over the last 30 days",
		target: 95, value: func(in Input) float64 { return in.MonthlyRate },
		hasData: func(in Input) bool { return in.MonthlyTotal > 0 },
	},
}

// Evaluate recomputes every achievement from in. Nothing is persisted.
func Evaluate(in Input) []Achievement {
	out := make([]Achievement, 0, len(rules))
	for _, r := range rules {
		v := r.value(in)
		unlocked := v >= r.target
		if r.hasData != nil && !r.hasData(in) {
			unlocked = false
			v = 0
		}
		out = append(out, Achievement{
			ID:          r.id,
			Title:       r.title,
			Description: r.description,
			Progress:    min(v, r.target),
			Target:      r.target,
			Unlocked:    unlocked,
		})
	}
	return out
}

// Unlocked filters the unlocked achievements
func Unlocked(all []Achievement) []Achievement {
	var out []Achievement
	for _, a := range all {
		if a.Unlocked {
			out = append(out, a)
		}
	}
	return out
}
