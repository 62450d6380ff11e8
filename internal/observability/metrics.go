package observability

// MetricKey names a registered instrument.
type MetricKey string

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"            // {use_case,outcome}
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"          // {use_case}
	MExternalRequests        MetricKey = "external_requests_total"           // {peer,endpoint,outcome}
	MExternalRequestDuration MetricKey = "external_request_duration_seconds" // {peer,endpoint}
	MStockTxRetries          MetricKey = "stock_tx_retries_total"            // {operation}
	MStockUnits              MetricKey = "stock_units_total"                 // {operation}
	MEventsHandled           MetricKey = "events_handled_total"              // {event,outcome}
)
