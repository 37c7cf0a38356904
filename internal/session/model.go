package session

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnContext tags a turn with what the user was looking at when it was sent.
type TurnContext struct {
	SearchQuery string `json:"search_query,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	Category    string `json:"category,omitempty"`
	Intent      string `json:"intent,omitempty"`
}

type Turn struct {
	Role      Role         `json:"role"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
	Context   *TurnContext `json:"context,omitempty"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Preferences struct {
	PriceRange *PriceRange `json:"price_range,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Brands     []string    `json:"brands,omitempty"`
	UseCase    string      `json:"use_case,omitempty"`
}

// History is derived from user turns and is only ever appended to.
// The lists are unbounded for the life of the session.
type History struct {
	Topics            []string `json:"topics"`
	ProductsDiscussed []string `json:"products_discussed"`
	QuestionsAsked    []string `json:"questions_asked"`
}

type Session struct {
	Key         string      `json:"key"`
	Turns       []Turn      `json:"turns"`
	Preferences Preferences `json:"preferences"`
	History     History     `json:"history"`
}

type Summary struct {
	TurnCount         int      `json:"turn_count"`
	Topics            []string `json:"topics"`
	ProductsDiscussed []string `json:"products_discussed"`
	DurationMs        int64    `json:"duration_ms"`
}

func newSession(key string) Session {
	return Session{
		Key: key,
		History: History{
			Topics:            []string{},
			ProductsDiscussed: []string{},
			QuestionsAsked:    []string{},
		},
	}
}

// LastTurn returns the most recent turn, or false when there are none.
func (s Session) LastTurn() (Turn, bool) {
	if len(s.Turns) == 0 {
		return Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// RecentTurns returns at most n turns from the end, oldest first.
func (s Session) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	start := len(s.Turns) - n
	if start < 0 {
		start = 0
	}
	return s.Turns[start:]
}

// UserTurnCount counts turns sent by the user.
func (s Session) UserTurnCount() int {
	n := 0
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no slice storage with s.
func (s Session) Clone() Session {
	c := s
	c.Turns = append([]Turn(nil), s.Turns...)
	for i := range c.Turns {
		if s.Turns[i].Context != nil {
			tc := *s.Turns[i].Context
			c.Turns[i].Context = &tc
		}
	}
	if s.Preferences.PriceRange != nil {
		pr := *s.Preferences.PriceRange
		c.Preferences.PriceRange = &pr
	}
	c.Preferences.Categories = append([]string(nil), s.Preferences.Categories...)
	c.Preferences.Brands = append([]string(nil), s.Preferences.Brands...)
	c.History = History{
		Topics:            append([]string{}, s.History.Topics...),
		ProductsDiscussed: append([]string{}, s.History.ProductsDiscussed...),
		QuestionsAsked:    append([]string{}, s.History.QuestionsAsked...),
	}
	return c
}

// Tail returns the last n items of list.
func Tail(list []string, n int) []string {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}
