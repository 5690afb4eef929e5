package strategy

import (
	"sort"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// Timetable is the fixed phase/day/channel schedule driving notification
// planning. Day offsets are relative to the loan's due date; negative days
// fall before it. The table is configuration, not business logic: planners
// iterate it, they never compute it.
type Timetable struct {
	days     map[domain.Stage][]int
	channels map[domain.Stage]map[int][]domain.Channel
}

// Entry is one concrete (stage, day, channel) slot of the timetable.
type Entry struct {
	Stage   domain.Stage
	Day     int
	Channel domain.Channel
}

// Default returns the standard collection timeline: four pre-due reminders,
// then escalating delinquency contact up to day 30.
func Default() Timetable {
	return Timetable{
		days: map[domain.Stage][]int{
			domain.StagePreventive:  {-7, -5, -3, -1},
			domain.StageEarlyDelay:  {1, 3, 5, 7},
			domain.StageMediumDelay: {8, 10, 12, 15},
			domain.StageLateDelay:   {16, 20, 25, 30},
		},
		channels: map[domain.Stage]map[int][]domain.Channel{
			domain.StagePreventive: {
				-7: {domain.ChannelEmail},
				-5: {domain.ChannelPush},
				-3: {domain.ChannelSMS, domain.ChannelPush},
				-1: {domain.ChannelSMS, domain.ChannelEmail},
			},
			domain.StageEarlyDelay: {
				1: {domain.ChannelSMS, domain.ChannelPush},
				3: {domain.ChannelEmail},
				5: {domain.ChannelSMS, domain.ChannelAICall},
				7: {domain.ChannelEmail, domain.ChannelSMS},
			},
			domain.StageMediumDelay: {
				8:  {domain.ChannelAICall},
				10: {domain.ChannelSMS, domain.ChannelEmail},
				12: {domain.ChannelPush},
				15: {domain.ChannelAICall, domain.ChannelEmail},
			},
			domain.StageLateDelay: {
				16: {domain.ChannelSMS, domain.ChannelEmail},
				20: {domain.ChannelAICall, domain.ChannelSMS},
				25: {domain.ChannelSMS, domain.ChannelEmail, domain.ChannelPush},
				30: {domain.ChannelAICall, domain.ChannelEmail},
			},
		},
	}
}

// Days returns the configured day offsets for a stage, in ascending order.
func (t Timetable) Days(stage domain.Stage) []int {
	days := append([]int(nil), t.days[stage]...)
	sort.Ints(days)
	return days
}

// ChannelsFor returns the channels active for a (stage, day), or nil when
// the day has no channel configuration.
func (t Timetable) ChannelsFor(stage domain.Stage, day int) []domain.Channel {
	byDay, ok := t.channels[stage]
	if !ok {
		return nil
	}
	return append([]domain.Channel(nil), byDay[day]...)
}

// Entries expands the whole table into ordered (stage, day, channel) slots:
// stages in timeline order, days ascending, channels in configured order.
func (t Timetable) Entries() []Entry {
	var entries []Entry
	for _, stage := range domain.Stages {
		for _, day := range t.Days(stage) {
			for _, channel := range t.ChannelsFor(stage, day) {
				entries = append(entries, Entry{Stage: stage, Day: day, Channel: channel})
			}
		}
	}
	return entries
}
