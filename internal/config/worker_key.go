package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	// PointsLedgerQueue is consumed by the gamification ledger, not by this service.
	PointsLedgerQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_attempt_answers_queue",
	PointsLedgerQueue:   "points_ledger_queue",
}
