package strategy

import (
	"fmt"

	"github.com/paycollect/loan-notifier/internal/domain"
)

// Catalog holds the message template text per (stage, day, channel). A
// missing entry means that slot is silently skipped during planning.
type Catalog struct {
	templates map[domain.Stage]map[int]map[domain.Channel]string
}

// TemplateKey builds the persisted template key for a (stage, day), e.g.
// "PREVENTIVE_-3" or "LATE_DELAY_20".
func TemplateKey(stage domain.Stage, day int) string {
	return fmt.Sprintf("%s_%d", stage.TemplateKeyPrefix(), day)
}

// Lookup returns the template text for a slot and whether it is configured.
func (c *Catalog) Lookup(stage domain.Stage, day int, channel domain.Channel) (string, bool) {
	if c == nil {
		return "", false
	}
	byDay, ok := c.templates[stage]
	if !ok {
		return "", false
	}
	byChannel, ok := byDay[day]
	if !ok {
		return "", false
	}
	tmpl, ok := byChannel[channel]
	return tmpl, ok
}

// DefaultCatalog returns the built-in collection message texts. Placeholders
// use {{name}} syntax and are substituted by the template renderer.
func DefaultCatalog() *Catalog {
	return &Catalog{templates: map[domain.Stage]map[int]map[domain.Channel]string{
		domain.StagePreventive: {
			-7: {
				domain.ChannelEmail: "Your payment of {{amount}} {{currency}} for loan {{creditNumber}} is due in 7 days. Please make sure funds are available.",
			},
			-5: {
				domain.ChannelPush: "Reminder: {{amount}} {{currency}} due in 5 days for loan {{creditNumber}}.",
			},
			-3: {
				domain.ChannelSMS:  "Payment of {{amount}} {{currency}} due soon for {{creditNumber}}",
				domain.ChannelPush: "Payment of {{amount}} {{currency}} for loan {{creditNumber}} is due in 3 days.",
			},
			-1: {
				domain.ChannelSMS:   "Your payment of {{amount}} {{currency}} for {{creditNumber}} is due tomorrow.",
				domain.ChannelEmail: "This is a reminder that your payment of {{amount}} {{currency}} for loan {{creditNumber}} is due tomorrow.",
			},
		},
		domain.StageEarlyDelay: {
			1: {
				domain.ChannelSMS:  "Your payment of {{amount}} {{currency}} for {{creditNumber}} is overdue. Please pay today to avoid penalties.",
				domain.ChannelPush: "Payment overdue: {{amount}} {{currency}} for loan {{creditNumber}}.",
			},
			3: {
				domain.ChannelEmail: "Your payment of {{amount}} {{currency}} for loan {{creditNumber}} is 3 days overdue. Late fees may apply.",
			},
			5: {
				domain.ChannelSMS:    "Loan {{creditNumber}}: payment of {{amount}} {{currency}} is 5 days overdue. Contact us if you need assistance.",
				domain.ChannelAICall: "Hello, this is a courtesy call about your loan {{creditNumber}}. Your payment of {{amount}} {{currency}} is 5 days overdue.",
			},
			7: {
				domain.ChannelEmail: "Final early notice: your payment of {{amount}} {{currency}} for loan {{creditNumber}} is one week overdue.",
				domain.ChannelSMS:   "Loan {{creditNumber}} is 7 days overdue. Outstanding: {{amount}} {{currency}}.",
			},
		},
		domain.StageMediumDelay: {
			8: {
				domain.ChannelAICall: "This is an important call regarding loan {{creditNumber}}. Your payment of {{amount}} {{currency}} is more than a week overdue.",
			},
			10: {
				domain.ChannelSMS:   "Urgent: loan {{creditNumber}} is 10 days overdue. Pay {{amount}} {{currency}} now to avoid escalation.",
				domain.ChannelEmail: "Your loan {{creditNumber}} is 10 days overdue. Unpaid amount: {{amount}} {{currency}}. Please settle immediately.",
			},
			12: {
				domain.ChannelPush: "Loan {{creditNumber}}: {{amount}} {{currency}} overdue for 12 days.",
			},
			15: {
				domain.ChannelAICall: "This call concerns your seriously overdue loan {{creditNumber}}. The outstanding amount is {{amount}} {{currency}}.",
				domain.ChannelEmail:  "Notice: loan {{creditNumber}} is 15 days overdue. Continued non-payment will lead to collection proceedings.",
			},
		},
		domain.StageLateDelay: {
			16: {
				domain.ChannelSMS:   "Collection notice for loan {{creditNumber}}: {{amount}} {{currency}} overdue. Auction scheduled for {{auctionDate}}.",
				domain.ChannelEmail: "{{companyName}}: loan {{creditNumber}} has entered the collection stage. {{remainingDays}} days remain before the auction on {{auctionDate}}.",
			},
			20: {
				domain.ChannelAICall: "This is {{companyName}} regarding loan {{creditNumber}}. {{remainingDays}} days remain to pay {{amount}} {{currency}} before the auction on {{auctionDate}}.",
				domain.ChannelSMS:    "Loan {{creditNumber}}: {{remainingDays}} days until auction on {{auctionDate}}. Pay {{amount}} {{currency}} now.",
			},
			25: {
				domain.ChannelSMS:   "Final warning for loan {{creditNumber}}: auction on {{auctionDate}} in {{remainingDays}} days.",
				domain.ChannelEmail: "{{companyName}} final warning: loan {{creditNumber}} collateral will be auctioned on {{auctionDate}} unless {{amount}} {{currency}} is paid.",
				domain.ChannelPush:  "Auction in {{remainingDays}} days for loan {{creditNumber}}.",
			},
			30: {
				domain.ChannelAICall: "This is the last call from {{companyName}} before the auction of the collateral for loan {{creditNumber}} on {{auctionDate}}.",
				domain.ChannelEmail:  "{{companyName}}: the collateral for loan {{creditNumber}} is being auctioned on {{auctionDate}}. Outstanding amount: {{amount}} {{currency}}.",
			},
		},
	}}
}

// DefaultEmailTemplateIDs maps every email-bearing template key in the
// default timetable to its gateway template id. Deployments override
// individual entries per collection company.
func DefaultEmailTemplateIDs() map[string]string {
	ids := map[string]string{}
	catalog := DefaultCatalog()
	for _, entry := range Default().Entries() {
		if entry.Channel != domain.ChannelEmail {
			continue
		}
		if _, ok := catalog.Lookup(entry.Stage, entry.Day, entry.Channel); !ok {
			continue
		}
		key := TemplateKey(entry.Stage, entry.Day)
		ids[key] = fmt.Sprintf("loan-%s-%d", entry.Stage.String(), entry.Day)
	}
	return ids
}
