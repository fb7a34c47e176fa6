package selection

import (
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// CandidateSpec is one entry of a registry file.
//
//	- name: Random Forest
//	  algorithm: random_forest
//	  params: {n_jobs: 2}
//	  search:
//	    n_estimators: [8, 16, 32]
type CandidateSpec struct {
	Name      string                   `yaml:"name" validate:"required"`
	Algorithm string                   `yaml:"algorithm" validate:"required"`
	Params    map[string]interface{}   `yaml:"params"`
	Search    map[string][]interface{} `yaml:"search" validate:"dive,min=1"`
}

var specValidate = validator.New()

// LoadRegistry builds a registry from a YAML list of candidates.
//
// Algorithm names resolve through Algorithms. Fixed params are applied to the
// prototype; every search value is checked against a clone so that a bad
// value fails here and not in the middle of a run.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var specs []CandidateSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&specs); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse registry yaml")
	}

	reg := NewRegistry()
	for _, spec := range specs {
		if err := specValidate.Struct(spec); err != nil {
			return nil, errors.NewValidationError("candidate", err.Error(), spec.Name)
		}
		newFn, ok := Algorithms[spec.Algorithm]
		if !ok {
			return nil, errors.NewValidationError("algorithm", "unknown algorithm", spec.Algorithm)
		}

		proto := newFn()
		if err := proto.SetParams(model.Params(spec.Params)); err != nil {
			return nil, errors.Wrapf(err, "candidate %q", spec.Name)
		}
		for param, values := range spec.Search {
			for _, v := range values {
				if err := proto.Clone().SetParams(model.Params{param: v}); err != nil {
					return nil, errors.Wrapf(err, "candidate %q search", spec.Name)
				}
			}
		}
		if err := reg.Register(spec.Name, proto, SearchSpace(spec.Search)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
