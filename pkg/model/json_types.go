package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// EngineSpecJSON, BenchmarkListJSON, and JobListJSON implement driver.Valuer/sql.Scanner
// so gorm can round-trip the open-ended nested structures through a jsonb column,
// mirroring the teacher's InstallConfigJSON pattern.

type EngineSpecJSON EngineSpec

func (e *EngineSpecJSON) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

func (e *EngineSpecJSON) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	b, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, e)
}

func (e *EngineSpecJSON) AsSpec() *EngineSpec {
	if e == nil {
		return nil
	}
	s := EngineSpec(*e)
	return &s
}

type BenchmarkListJSON []BenchmarkSpec

func (b BenchmarkListJSON) Value() (driver.Value, error) {
	if b == nil {
		return json.Marshal([]BenchmarkSpec{})
	}
	return json.Marshal([]BenchmarkSpec(b))
}

func (b *BenchmarkListJSON) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}
	raw, err := toBytes(value)
	if err != nil {
		return err
	}
	var list []BenchmarkSpec
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	*b = list
	return nil
}

type JobListJSON []JobRecord

func (j JobListJSON) Value() (driver.Value, error) {
	if j == nil {
		return json.Marshal([]JobRecord{})
	}
	return json.Marshal([]JobRecord(j))
}

func (j *JobListJSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	raw, err := toBytes(value)
	if err != nil {
		return err
	}
	var list []JobRecord
	if err := json.Unmarshal(raw, &list); err != nil {
		return err
	}
	*j = list
	return nil
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported jsonb source type %T", value)
	}
}
