package normalize

// User describes the end user affected by an event.
type User struct {
	ID        Annotated[string]
	Email     Annotated[string]
	IPAddress Annotated[IPAddress]
	Username  Annotated[string]
	Name      Annotated[string]
	Geo       Annotated[Geo]
	Data      Annotated[map[string]Value]
	Other     map[string]Value
}
