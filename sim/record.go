package sim

// RecordKind classifies a journal entry.
type RecordKind string

const (
	RecordService            RecordKind = "service"
	RecordInterruptedService RecordKind = "interrupted service"
	RecordRenege             RecordKind = "renege"
	RecordBaulk              RecordKind = "baulk"
	RecordRejection          RecordKind = "rejection"
)

// NoQueueSize marks a queue-size snapshot that was never taken.
const NoQueueSize = -1

// Record is one immutable entry of an individual's journal.
// Baulk and rejection records carry no service-related timestamps.
type Record struct {
	Kind                 RecordKind
	ID                   int
	OriginalClass        int // class on arrival at the node
	Class                int // class on leaving the node
	Node                 int
	ArrivalDate          float64
	WaitingTime          OptTime
	ServiceStartDate     OptTime
	ServiceTime          OptTime
	ServiceEndDate       OptTime
	TimeBlocked          OptTime
	ExitDate             float64
	Destination          int // 0 when the individual did not move on (interruption, rejection, baulk)
	QueueSizeAtArrival   int
	QueueSizeAtDeparture int
	ServerID             int // 0 when no server was involved
}
