package worker_handler

// Broadcaster is the slice of the gateway a worker needs.
type Broadcaster interface {
	Broadcast(event string, data any, roomIDs ...string) int
}

type WorkerHandler struct {
	Ws Broadcaster
}

func NewWorkerHandler(ws Broadcaster) *WorkerHandler {
	return &WorkerHandler{
		Ws: ws,
	}
}
