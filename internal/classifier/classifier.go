package classifier

import (
	"context"
	"errors"
)

// ErrNoPrediction is returned when the model produced no candidate at all.
var ErrNoPrediction = errors.New("classifier returned no predictions")

// Prediction is one labeled candidate produced by the model.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// Classifier exposes the subset of the model service used by the identification flow.
// Predictions keep the order chosen by the model, normally descending confidence.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}

// Top returns the first prediction. Ties are not broken: the model's order wins.
func Top(predictions []Prediction) (Prediction, error) {
	if len(predictions) == 0 {
		return Prediction{}, ErrNoPrediction
	}
	return predictions[0], nil
}
