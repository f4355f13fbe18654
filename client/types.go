package client

import (
	"coldwatch/core/incident"
	"coldwatch/core/rbac"
)

// Reading is the latest-measurement payload of the dashboard.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

// ChartData carries aligned series for plotting.
type ChartData struct {
	Temps       []string  `json:"temps"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
}

// CommentView is one incident comment as rendered on the dashboard.
type CommentView struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// IncidentStatus is the full incident snapshot the server returns. It is
// replaced wholesale on every poll; consumers must not mutate it.
type IncidentStatus struct {
	Active       bool                `json:"incident_actif"`
	ID           int64               `json:"id"`
	Counter      int                 `json:"compteur"`
	StartedAt    string              `json:"date_debut"`
	Temperature  *float64            `json:"temperature"`
	Humidity     *float64            `json:"humidity"`
	Acknowledged bool                `json:"accuse_reception"`
	AckOperator  *string             `json:"accuse_reception_operateur"`
	AckAt        *string             `json:"accuse_reception_date"`
	Op1Checked   bool                `json:"op1_checked"`
	Op1Comment   string              `json:"op1_comment"`
	Op1Operator  *string             `json:"op1_operateur"`
	Op1At        *string             `json:"op1_date"`
	Op2Checked   bool                `json:"op2_checked"`
	Op2Comment   string              `json:"op2_comment"`
	Op2Operator  *string             `json:"op2_operateur"`
	Op2At        *string             `json:"op2_date"`
	Op3Checked   bool                `json:"op3_checked"`
	Op3Comment   string              `json:"op3_comment"`
	Op3Operator  *string             `json:"op3_operateur"`
	Op3At        *string             `json:"op3_date"`
	Comments     []CommentView       `json:"comments"`
	Permissions  rbac.PermissionSet  `json:"permissions"`
}

// VisibleOperations reports which corrective operations the dashboard should
// show at the current escalation counter.
func (s *IncidentStatus) VisibleOperations() [incident.OperationCount]bool {
	if s == nil || !s.Active {
		return [incident.OperationCount]bool{}
	}
	return incident.VisibleOperations(s.Counter)
}

// Stats is the full readings list of GET /api/.
type Stats struct {
	Data []StatsRow `json:"data"`
}

type StatsRow struct {
	ID   int64   `json:"id"`
	Temp float64 `json:"temp"`
	Hum  float64 `json:"hum"`
	DT   string  `json:"dt"`
}
