package domain

import "time"

// Analytics aggregates validation telemetry for one family.
type Analytics struct {
	TotalValidations  int64            `json:"totalValidations"`
	FailedValidations int64            `json:"failedValidations"`
	FieldErrorCounts  map[string]int64 `json:"fieldErrorCounts,omitempty"`
	LastValidatedAt   *time.Time       `json:"lastValidatedAt,omitempty"`
}

// AnalyticsDelta is one increment reported by a validation session.
type AnalyticsDelta struct {
	Validations int64
	Failures    int64
	FieldErrors map[string]int64
	At          time.Time
}

func (d AnalyticsDelta) IsZero() bool {
	return d.Validations == 0 && d.Failures == 0 && len(d.FieldErrors) == 0
}

// Merge folds other into d, keeping the latest timestamp.
func (d AnalyticsDelta) Merge(other AnalyticsDelta) AnalyticsDelta {
	d.Validations += other.Validations
	d.Failures += other.Failures
	if len(other.FieldErrors) > 0 {
		merged := make(map[string]int64, len(d.FieldErrors)+len(other.FieldErrors))
		for k, v := range d.FieldErrors {
			merged[k] = v
		}
		for k, v := range other.FieldErrors {
			merged[k] += v
		}
		d.FieldErrors = merged
	}
	if other.At.After(d.At) {
		d.At = other.At
	}
	return d
}

func (a Analytics) Apply(d AnalyticsDelta) Analytics {
	out := a.clone()
	out.TotalValidations += d.Validations
	out.FailedValidations += d.Failures
	for field, n := range d.FieldErrors {
		if out.FieldErrorCounts == nil {
			out.FieldErrorCounts = make(map[string]int64)
		}
		out.FieldErrorCounts[field] += n
	}
	if !d.At.IsZero() && (out.LastValidatedAt == nil || d.At.After(*out.LastValidatedAt)) {
		at := d.At
		out.LastValidatedAt = &at
	}
	return out
}

func (a Analytics) clone() Analytics {
	out := a
	if a.FieldErrorCounts != nil {
		out.FieldErrorCounts = make(map[string]int64, len(a.FieldErrorCounts))
		for k, v := range a.FieldErrorCounts {
			out.FieldErrorCounts[k] = v
		}
	}
	if a.LastValidatedAt != nil {
		at := *a.LastValidatedAt
		out.LastValidatedAt = &at
	}
	return out
}
