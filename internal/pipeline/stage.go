package pipeline

// Stage is a step of a build.
type Stage int

const (
	StageResolvingConfig Stage = iota
	StageCheckingCache
	StageFetchingData
	StageFilteringGeometry
	StageBuildingStyle
	StageRendering
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageResolvingConfig:   "RESOLVING_CONFIG",
	StageCheckingCache:     "CHECKING_CACHE",
	StageFetchingData:      "FETCHING_DATA",
	StageFilteringGeometry: "FILTERING_GEOMETRY",
	StageBuildingStyle:     "BUILDING_STYLE",
	StageRendering:         "RENDERING",
	StageDone:              "DONE",
	StageFailed:            "FAILED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// Event reports a stage transition. Fingerprint is empty until the spec has
// been resolved; Err is set only for StageFailed.
type Event struct {
	Stage       Stage
	SpecFile    string
	Fingerprint string
	Err         error
}

// Observer receives every stage transition of a build, synchronously and in
// order. It must not block.
type Observer func(Event)
