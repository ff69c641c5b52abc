package display

import "marco/internal/history"

// Sink is what the session draws on.
type Sink interface {
	SetStatus(text string)
	Append(line string)
	ShowHistory(turns []history.Turn)
}

// Tee mirrors every call to all sinks, in order. Nil sinks are dropped.
type Tee []Sink

func NewTee(sinks ...Sink) Tee {
	var t Tee
	for _, s := range sinks {
		if s != nil {
			t = append(t, s)
		}
	}
	return t
}

func (t Tee) SetStatus(text string) {
	for _, s := range t {
		s.SetStatus(text)
	}
}

func (t Tee) Append(line string) {
	for _, s := range t {
		s.Append(line)
	}
}

func (t Tee) ShowHistory(turns []history.Turn) {
	for _, s := range t {
		s.ShowHistory(turns)
	}
}
