package twinfleet

// Prediction is the forecast of one twin together with the alerts it raises.
type Prediction struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	FutureSteps int        `json:"future_steps"`
	StepSeconds int        `json:"step_seconds"`
	Predictions Series     `json:"predictions"`
	Thresholds  Thresholds `json:"thresholds"`
	// Alerts holds at most one alert per metric, ordered temperature, pressure,
	// then performance.
	Alerts []Alert `json:"alerts"`
}

// Predict forecasts every metric of view steps ticks ahead and evaluates each
// forecast against its band in thresholds.
func Predict(view TwinView, steps, stepSeconds int, thresholds Thresholds) Prediction {
	p := Prediction{
		ID:          view.ID,
		Name:        view.Name,
		FutureSteps: steps,
		StepSeconds: stepSeconds,
		Thresholds:  thresholds,
		Predictions: Series{
			Temperature: Forecast(view.History.Temperature, steps),
			Pressure:    Forecast(view.History.Pressure, steps),
			Performance: Forecast(view.History.Performance, steps),
		},
		Alerts: []Alert{},
	}
	for _, m := range Metrics {
		if a, ok := EvaluateAlert(m, p.Predictions.Of(m), thresholds.Of(m), stepSeconds); ok {
			p.Alerts = append(p.Alerts, a)
		}
	}
	return p
}
