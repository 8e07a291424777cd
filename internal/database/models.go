package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edgard/polybot/internal/inference"
)

// Prediction is one persisted object-detection result.
type Prediction struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	PredictionID   string    `db:"prediction_id"      validate:"required,uuid"`
	OriginalImage  string    `db:"original_img_path"  validate:"required"`
	PredictedImage string    `db:"predicted_img_path" validate:"required"`
	Labels         LabelList `db:"labels"`
	Timestamp      time.Time `db:"timestamp"          validate:"required"`
}

// LabelList stores detected labels as a JSON array column.
type LabelList []inference.Label

// Value implements driver.Valuer.
func (l LabelList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]inference.Label(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *LabelList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into LabelList", src)
	}

	var labels []inference.Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return fmt.Errorf("decode labels: %w", err)
	}
	*l = labels
	return nil
}
