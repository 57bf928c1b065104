package config

type WorkerKeyStruct struct {
	SessionActivityQueue string
}

var WorkerKey = &WorkerKeyStruct{
	SessionActivityQueue: "session_activity_queue",
}
