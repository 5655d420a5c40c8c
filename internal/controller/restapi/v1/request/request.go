package request

type SetFlag struct {
	Enabled *bool `json:"enabled"`
}

type Requeue struct {
	QueueName string `json:"queueName"`
	JobID     string `json:"jobId"`
}

// Clean takes a grace period as a Go duration string, e.g. "1h".
type Clean struct {
	Grace string `json:"grace"`
}

type SetWorkers struct {
	Workers *int `json:"workers"`
}

type Strategy struct {
	Strategy string `json:"strategy"`
}

type AddNode struct {
	WorkerID string `json:"worker_id"`
	Weight   int    `json:"weight"`
}
