package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medqueue/medqueue/internal/domain/queue"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	normalized, err := validateSymptoms(p.Symptoms)
	if err != nil {
		return err
	}
	p.Symptoms = normalized
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.FirstName == "" {
		return fmt.Errorf("first_name is required")
	}
	if p.LastName == "" {
		return fmt.Errorf("last_name is required")
	}
	return s.repo.Update(ctx, p)
}

// UpdateSymptoms replaces the patient's current symptom report. The
// list is normalized and checked against the intake vocabulary.
func (s *Service) UpdateSymptoms(ctx context.Context, id uuid.UUID, symptoms []string) (*Patient, error) {
	normalized, err := validateSymptoms(symptoms)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSymptoms(ctx, id, normalized); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func validateSymptoms(symptoms []string) ([]string, error) {
	normalized := queue.NormalizeSymptoms(symptoms)
	for _, s := range normalized {
		if !queue.IsAllowedSymptom(s) {
			return nil, fmt.Errorf("unknown symptom %q", s)
		}
	}
	if normalized == nil {
		normalized = []string{}
	}
	return normalized, nil
}
