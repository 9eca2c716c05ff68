package app

import "fmt"

// Custom application-level errors for the dispatch path.
var ErrPersistenceFailure = fmt.Errorf("guild settings could not be persisted")
var ErrDestinationUnresolvable = fmt.Errorf("guild has no destination channel configured")
