package audit

import "time"

// Filters narrow the audit listing. From and To are calendar days and
// To is inclusive; zero values leave that side unbounded.
type Filters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// Row is one audit log entry with the actor resolved for display.
type Row struct {
	ID       int64
	At       time.Time
	ActorID  int64
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// PagingInfo carries windowed paging state.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result bundles one page of rows with its paging info.
type Result struct {
	Rows   []Row
	Paging PagingInfo
}
