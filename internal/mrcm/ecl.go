package mrcm

import (
	"context"
	"errors"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/ecl"
	"github.com/ontocore/ontocore-server/internal/semindex"
)

// Evaluator is the narrow ECL dependency the updater consults for
// step 4's "<< CONCEPT_MODEL_DATA_ATTRIBUTE" fragment.
type Evaluator interface {
	Evaluate(ctx context.Context, branch string, stated bool, expression string) ([]string, error)
}

type indexEvaluator struct {
	index semindex.Index
}

// NewEvaluator adapts a semantic index into an Evaluator via
// internal/ecl's single supported fragment.
func NewEvaluator(index semindex.Index) Evaluator {
	return indexEvaluator{index: index}
}

func (e indexEvaluator) Evaluate(ctx context.Context, branch string, stated bool, expression string) ([]string, error) {
	ids, err := ecl.Evaluate(ctx, e.index, branch, stated, expression)
	if errors.Is(err, ecl.ErrUnsupportedExpression) {
		return nil, apperr.NewConversion("ECL expression "+expression, err)
	}
	return ids, err
}

// dataAttributesExpression is the fixed ECL fragment step 4 evaluates:
// every concept-model data attribute and its descendants.
func dataAttributesExpression() string {
	return "<< " + domain.ConceptModelDataAttributeID
}
