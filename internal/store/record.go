// internal/store/record.go
//
// Persisted projection of one game, one record per chat key.
// Only plain data lives here: no timers, no callbacks. Field names follow
// the on-disk format used by every backend (json and bson share names).

package store

import (
	"math"
	"time"
)

// TimerState is a timer frozen as {interval seconds, absolute unix end time}.
type TimerState struct {
	Interval int     `json:"interval" bson:"interval"`
	EndTime  float64 `json:"end_time" bson:"end_time"`
}

// NewTimerState converts a live deadline into its persisted form.
func NewTimerState(interval time.Duration, end time.Time) *TimerState {
	return &TimerState{
		Interval: int(math.Round(interval.Seconds())),
		EndTime:  float64(end.UnixNano()) / 1e9,
	}
}

// IntervalDuration returns the interval as a time.Duration.
func (ts TimerState) IntervalDuration() time.Duration {
	return time.Duration(ts.Interval) * time.Second
}

// Deadline returns the absolute end time.
func (ts TimerState) Deadline() time.Time {
	sec, frac := math.Modf(ts.EndTime)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// Record is the durable state of one game.
type Record struct {
	Active            bool        `json:"active" bson:"active"`
	UsedWords         []string    `json:"used_words" bson:"used_words"`
	GameTimer         *TimerState `json:"game_timer" bson:"game_timer"`
	CurrentLeader     *int64      `json:"current_leader" bson:"current_leader"`
	LeaderName        *string     `json:"leader_name" bson:"leader_name"`
	CurrentWord       *string     `json:"current_word" bson:"current_word"`
	NextWords         []string    `json:"next_words" bson:"next_words"`
	AnswersSet        []string    `json:"answers_set" bson:"answers_set"`
	ExclusiveUser     *int64      `json:"exclusive_user" bson:"exclusive_user"`
	ExclusiveUserName *string     `json:"exclusive_user_name" bson:"exclusive_user_name"`
	ExclusiveTimer    *TimerState `json:"exclusive_timer" bson:"exclusive_timer"`
	Players           []string    `json:"players" bson:"players"`
	ChatID            int64       `json:"chat_id" bson:"chat_id"`
	ChatTitle         string      `json:"chat_title" bson:"chat_title"`
	ChatUsername      *string     `json:"chat_username,omitempty" bson:"chat_username,omitempty"`
	TopicID           *int64      `json:"topic_id" bson:"topic_id"`
	TopicName         *string     `json:"topic_name" bson:"topic_name"`
}

// Clone returns a deep copy so callers never share slices or pointers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.UsedWords = cloneStrings(r.UsedWords)
	c.NextWords = cloneStrings(r.NextWords)
	c.AnswersSet = cloneStrings(r.AnswersSet)
	c.Players = cloneStrings(r.Players)
	c.GameTimer = cloneTimer(r.GameTimer)
	c.ExclusiveTimer = cloneTimer(r.ExclusiveTimer)
	c.CurrentLeader = clonePtr(r.CurrentLeader)
	c.LeaderName = clonePtr(r.LeaderName)
	c.CurrentWord = clonePtr(r.CurrentWord)
	c.ExclusiveUser = clonePtr(r.ExclusiveUser)
	c.ExclusiveUserName = clonePtr(r.ExclusiveUserName)
	c.ChatUsername = clonePtr(r.ChatUsername)
	c.TopicID = clonePtr(r.TopicID)
	c.TopicName = clonePtr(r.TopicName)
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneTimer(ts *TimerState) *TimerState {
	if ts == nil {
		return nil
	}
	c := *ts
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
