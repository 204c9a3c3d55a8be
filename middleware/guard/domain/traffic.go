package domain

// TrafficRecorder recebe os ganchos do pipeline. É apenas observacional:
// não pode alterar a decisão de admissão nem o corpo da resposta.
//
// ExceptionRaised não deve engolir nem modificar o erro recebido.
type TrafficRecorder interface {
	RequestStarted()
	ResponseCompleted()
	ExceptionRaised(err error)
}

// TrafficSnapshot é uma leitura dos contadores agregados do processo.
type TrafficSnapshot struct {
	RequestsStarted    int64 `json:"requests_started"`
	ResponsesCompleted int64 `json:"responses_completed"`
	ExceptionsRaised   int64 `json:"exceptions_raised"`
}

// TrafficSource expõe os contadores para inspeção (endpoint de métricas, debug).
type TrafficSource interface {
	Snapshot() TrafficSnapshot
}
