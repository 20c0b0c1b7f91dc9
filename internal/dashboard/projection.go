package dashboard

import (
	"fmt"
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

// Projections are pure functions of a replica snapshot. Inputs are expected
// newest first, as replica.Store.List returns them.

const (
	FilterAll          = "all"
	FilterQualified    = "qualified"
	FilterNotQualified = "not_qualified"
	FilterToWork       = "to_work"
	FilterBooked       = "booked"

	recentLeadsLimit     = 5
	recentQualifiedLimit = 10
)

type LeadFilter struct {
	Status    string `json:"status"`
	LeadType  string `json:"lead_type"`
	Qualified string `json:"qualified"`
	Search    string `json:"search"`
}

type LeadsPage struct {
	Leads   []entity.Lead `json:"leads"`
	Shown   int           `json:"shown"`
	Total   int           `json:"total"`
	Caption string        `json:"caption"`
}

func isAll(v string) bool { return v == "" || v == FilterAll }

func FilterLeads(leads []entity.Lead, f LeadFilter) LeadsPage {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]entity.Lead, 0, len(leads))

	for _, l := range leads {
		if !isAll(f.Status) && string(l.Status) != f.Status {
			continue
		}
		if !isAll(f.LeadType) && string(l.LeadType) != f.LeadType {
			continue
		}
		switch f.Qualified {
		case FilterQualified:
			if !l.Qualified {
				continue
			}
		case FilterNotQualified:
			if l.Qualified {
				continue
			}
		}
		if term != "" && !matches(l, term) {
			continue
		}
		out = append(out, l)
	}

	return LeadsPage{
		Leads:   out,
		Shown:   len(out),
		Total:   len(leads),
		Caption: fmt.Sprintf("%d of %d total", len(out), len(leads)),
	}
}

func matches(l entity.Lead, term string) bool {
	for _, field := range []string{l.Name, l.Email, l.Phone, string(l.LeadType), string(l.SourceChannel)} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

type InboundSummary struct {
	Total              int `json:"total"`
	ToWork             int `json:"to_work"`
	AppointmentsBooked int `json:"appointments_booked"`
}

type InboundPage struct {
	Leads   []entity.Lead  `json:"leads"`
	Summary InboundSummary `json:"summary"`
}

// InboundLeads keeps only inbound leads. A lead whose type changes drops
// out on the next projection.
func InboundLeads(leads []entity.Lead) []entity.Lead {
	out := make([]entity.Lead, 0, len(leads))
	for _, l := range leads {
		if l.LeadType == entity.LeadTypeInbound {
			out = append(out, l)
		}
	}
	return out
}

// ProjectInbound filters inbound leads by all, to_work, booked or a status.
// The summary always covers every inbound lead.
func ProjectInbound(leads []entity.Lead, filter string) InboundPage {
	inbound := InboundLeads(leads)

	var sum InboundSummary
	sum.Total = len(inbound)
	for _, l := range inbound {
		if !l.Qualified {
			sum.ToWork++
		}
		if l.CallResult == entity.CallResultAppointmentBooked {
			sum.AppointmentsBooked++
		}
	}

	out := make([]entity.Lead, 0, len(inbound))
	for _, l := range inbound {
		switch {
		case isAll(filter):
		case filter == FilterToWork:
			if l.Qualified {
				continue
			}
		case filter == FilterBooked:
			if l.CallResult != entity.CallResultAppointmentBooked {
				continue
			}
		default:
			if string(l.Status) != filter {
				continue
			}
		}
		out = append(out, l)
	}

	return InboundPage{Leads: out, Summary: sum}
}

type DashboardStats struct {
	TotalLeads        int           `json:"total_leads"`
	HotLeads          int           `json:"hot_leads"`
	WarmLeads         int           `json:"warm_leads"`
	ColdLeads         int           `json:"cold_leads"`
	UninterestedLeads int           `json:"uninterested_leads"`
	ConversionRate    float64       `json:"conversion_rate"`
	RecentLeads       []entity.Lead `json:"recent_leads"`
}

// ComputeDashboardStats counts leads by temperature. Conversion is the share
// of hot and warm leads, in percent.
func ComputeDashboardStats(leads []entity.Lead) DashboardStats {
	s := DashboardStats{TotalLeads: len(leads)}
	for _, l := range leads {
		switch l.Status {
		case entity.StatusHot:
			s.HotLeads++
		case entity.StatusWarm:
			s.WarmLeads++
		case entity.StatusCold:
			s.ColdLeads++
		case entity.StatusUninterested:
			s.UninterestedLeads++
		}
	}
	s.ConversionRate = percent(s.HotLeads+s.WarmLeads, s.TotalLeads)
	s.RecentLeads = head(leads, recentLeadsLimit)
	return s
}

type Analytics struct {
	TotalLeads           int            `json:"total_leads"`
	InboundLeads         int            `json:"inbound_leads"`
	OutboundLeads        int            `json:"outbound_leads"`
	HotLeads             int            `json:"hot_leads"`
	WarmLeads            int            `json:"warm_leads"`
	ColdLeads            int            `json:"cold_leads"`
	AppointmentsBooked   int            `json:"appointments_booked"`
	Unsuccessful         int            `json:"unsuccessful"`
	ConversionRate       float64        `json:"conversion_rate"`
	InboundBySource      map[string]int `json:"inbound_by_source"`
	RecentQualifiedLeads []entity.Lead  `json:"recent_qualified_leads"`
}

// ComputeAnalytics measures conversion as booked appointments over all leads.
func ComputeAnalytics(leads []entity.Lead) Analytics {
	a := Analytics{
		TotalLeads:      len(leads),
		InboundBySource: map[string]int{},
	}
	qualified := make([]entity.Lead, 0)

	for _, l := range leads {
		switch l.LeadType {
		case entity.LeadTypeInbound:
			a.InboundLeads++
			source := string(l.SourceChannel)
			if source == "" {
				source = "unknown"
			}
			a.InboundBySource[source]++
		case entity.LeadTypeOutbound:
			a.OutboundLeads++
		}

		switch l.Status {
		case entity.StatusHot:
			a.HotLeads++
		case entity.StatusWarm:
			a.WarmLeads++
		case entity.StatusCold:
			a.ColdLeads++
		}

		switch l.CallResult {
		case entity.CallResultAppointmentBooked:
			a.AppointmentsBooked++
		case entity.CallResultUnsuccessful:
			a.Unsuccessful++
		}

		if l.Qualified {
			qualified = append(qualified, l)
		}
	}

	a.ConversionRate = percent(a.AppointmentsBooked, a.TotalLeads)
	a.RecentQualifiedLeads = head(qualified, recentQualifiedLimit)
	return a
}

type FlagStatus struct {
	Flag  entity.Flag `json:"flag"`
	Armed bool        `json:"armed"`
	Busy  bool        `json:"busy"`
	State string      `json:"state"`
}

type AutomationState struct {
	Trigger    *entity.Trigger        `json:"trigger"`
	Calling    FlagStatus             `json:"calling"`
	Qualifying FlagStatus             `json:"qualifying"`
	Logs       []entity.AutomationLog `json:"logs"`
}

// ProjectAutomation assembles the automation screen from the trigger
// replica and the user's logs. busy and state describe local arm progress.
func ProjectAutomation(triggers []entity.Trigger, logs []entity.AutomationLog, userID string, limit int, busy func(entity.Flag) bool, state func(entity.Flag) string) AutomationState {
	var st AutomationState
	for i := range triggers {
		if triggers[i].ID == entity.TriggerID {
			t := triggers[i]
			st.Trigger = &t
			break
		}
	}

	flag := func(f entity.Flag) FlagStatus {
		fs := FlagStatus{Flag: f}
		if st.Trigger != nil {
			fs.Armed = st.Trigger.Flag(f)
		}
		if busy != nil {
			fs.Busy = busy(f)
		}
		if state != nil {
			fs.State = state(f)
		}
		return fs
	}
	st.Calling = flag(entity.FlagStartCalling)
	st.Qualifying = flag(entity.FlagStartQualifying)

	st.Logs = make([]entity.AutomationLog, 0, limit)
	for _, l := range logs {
		if len(st.Logs) == limit {
			break
		}
		if l.UserID == userID {
			st.Logs = append(st.Logs, l)
		}
	}
	return st
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func head(leads []entity.Lead, n int) []entity.Lead {
	if len(leads) > n {
		leads = leads[:n]
	}
	out := make([]entity.Lead, len(leads))
	copy(out, leads)
	return out
}
