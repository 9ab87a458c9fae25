package normalize

import "time"

// Breadcrumb is one entry in the event's breadcrumb trail: a lightweight,
// timestamped log line leading up to the event.
type Breadcrumb struct {
	Type      Annotated[string]
	Level     Annotated[Level]
	Message   Annotated[string]
	Category  Annotated[string]
	Timestamp Annotated[time.Time]
	Data      Annotated[map[string]Value]
}
