// Package scoring classifies activities into point-earning categories.
package scoring

import (
	"strings"
)

// Category is the scoring bucket assigned to an activity.
type Category string

const (
	Walk           Category = "walk"
	Run            Category = "run"
	Football       Category = "football"
	WeightTraining Category = "weighttraining"
	Other          Category = "other"
	None           Category = "none"
)

// Categories lists the point-earning categories in summary order.
var Categories = []Category{Walk, Run, Football, WeightTraining, Other}

var labels = map[Category]string{
	Walk:           "Walks",
	Run:            "Runs",
	Football:       "Football",
	WeightTraining: "Weight Training",
	Other:          "Other",
}

// Label returns the display label used in leaderboard summaries.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Default thresholds.
const (
	WalkMinSeconds           = 45 * 60
	WalkMinMeters            = 3000
	RunMinMeters             = 3000
	OtherMinSeconds          = 30 * 60
	WeightTrainingMinSeconds = 30 * 60
	FootballMinSeconds       = 0
)

// Activity is the subset of an activity record the rules look at.
type Activity struct {
	Type        string
	Distance    float64 // meters
	ElapsedTime int     // seconds
}

// Result is the outcome of classifying one activity.
type Result struct {
	Category Category
	Points   int
}

// Scored reports whether the activity earned a point.
func (r Result) Scored() bool {
	return r.Points > 0
}

// Rule claims activities whose lower-cased type satisfies Applies and awards
// Points in Category when Qualifies also holds. A claimed activity that does
// not qualify earns nothing; later rules are not consulted.
type Rule struct {
	Name      string
	Category  Category
	Points    int
	Applies   func(kind string) bool
	Qualifies func(a Activity) bool
}

// Engine evaluates an ordered rule list. The first matching rule wins.
type Engine struct {
	rules []Rule

	footballKeywords     []string
	footballMinSeconds   int
	weightTrainingMinSec int
}

// Option configures an Engine.
type Option func(*Engine)

// WithFootballMinSeconds requires football activities to last longer than s
// seconds. Zero means any football activity scores.
func WithFootballMinSeconds(s int) Option {
	return func(e *Engine) {
		if s >= 0 {
			e.footballMinSeconds = s
		}
	}
}

// WithWeightTrainingMinSeconds requires weight training to last longer than s seconds.
func WithWeightTrainingMinSeconds(s int) Option {
	return func(e *Engine) {
		if s >= 0 {
			e.weightTrainingMinSec = s
		}
	}
}

// WithFootballKeywords sets the substrings that mark an activity as football.
func WithFootballKeywords(keywords ...string) Option {
	return func(e *Engine) {
		var kw []string
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		if len(kw) > 0 {
			e.footballKeywords = kw
		}
	}
}

// NewEngine builds an engine with the default rule table.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		footballKeywords:     []string{"football", "soccer"},
		footballMinSeconds:   FootballMinSeconds,
		weightTrainingMinSec: WeightTrainingMinSeconds,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = e.defaultRules()
	return e
}

func (e *Engine) defaultRules() []Rule {
	return []Rule{
		{
			Name:      "walk over 45 minutes or 3 km",
			Category:  Walk,
			Points:    1,
			Applies:   func(kind string) bool { return kind == "walk" },
			Qualifies: func(a Activity) bool { return a.ElapsedTime > WalkMinSeconds || a.Distance > WalkMinMeters },
		},
		{
			Name:      "run over 3 km",
			Category:  Run,
			Points:    1,
			Applies:   func(kind string) bool { return kind == "run" },
			Qualifies: func(a Activity) bool { return a.Distance > RunMinMeters },
		},
		{
			Name:      "football",
			Category:  Football,
			Points:    1,
			Applies:   func(kind string) bool { return containsAny(kind, e.footballKeywords) },
			Qualifies: func(a Activity) bool { return e.footballMinSeconds == 0 || a.ElapsedTime > e.footballMinSeconds },
		},
		{
			Name:      "weight training",
			Category:  WeightTraining,
			Points:    1,
			Applies:   func(kind string) bool { return strings.Contains(kind, "weighttraining") },
			Qualifies: func(a Activity) bool { return a.ElapsedTime > e.weightTrainingMinSec },
		},
		{
			Name:      "anything over 30 minutes",
			Category:  Other,
			Points:    1,
			Applies:   func(string) bool { return true },
			Qualifies: func(a Activity) bool { return a.ElapsedTime > OtherMinSeconds },
		},
	}
}

// Rules returns a copy of the engine's ordered rule table.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Classify returns the category and points for a single activity.
func (e *Engine) Classify(a Activity) Result {
	kind := strings.ToLower(strings.TrimSpace(a.Type))
	for _, r := range e.rules {
		if !r.Applies(kind) {
			continue
		}
		if r.Qualifies(a) {
			return Result{Category: r.Category, Points: r.Points}
		}
		break
	}
	if kind == "" {
		return Result{Category: None}
	}
	return Result{Category: Category(kind)}
}

func containsAny(s string, subs []string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
