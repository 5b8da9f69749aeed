package events

import "github.com/Vatsal-Thapliyal/joblisting/internal/entities"

const RunFinishedTopic = "run:finished"

// RunFinished is published once per import run, when it reaches a terminal
// status. Run carries the final counters.
type RunFinished struct {
	Run entities.ImportRun
}
