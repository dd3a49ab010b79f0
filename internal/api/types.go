package api

type AddRequest struct {
	Input1 []float32 `json:"input1"`
	Input2 []float32 `json:"input2"`
	// Store keeps the result retrievable by id. Defaults to true.
	Store *bool `json:"store,omitempty"`
}

type AddResponse struct {
	ID         string    `json:"id"`
	Object     string    `json:"object"`
	CreatedAt  int64     `json:"created_at"`
	Length     int       `json:"length"`
	Output     []float32 `json:"output"`
	DurationMS float64   `json:"duration_ms"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type DeviceResponse struct {
	Backend     string `json:"backend"`
	Name        string `json:"name"`
	TotalMemory uint64 `json:"total_memory"`
	Streams     int    `json:"streams"`
	SegmentSize int    `json:"segment_size"`
	BlockSize   int    `json:"block_size"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
