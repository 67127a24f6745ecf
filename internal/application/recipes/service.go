// Package recipes implements the recipes page controller: generation keyed
// on the current inventory, custom generation with constraints, and the
// cooking-assistant chat whose state lives entirely client-side.
package recipes

import (
	"context"

	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/domain/recipe"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// FallbackReply is appended to the transcript when the assistant call
// fails, so every user message gets exactly one reply.
const FallbackReply = "Sorry, I couldn't respond just now. Please try again."

// Service is the recipes page controller.
type Service struct {
	client  *api.Client
	control *session.Controller
	logger  *zap.Logger
}

// NewService creates the recipes page controller.
func NewService(client *api.Client, control *session.Controller, logger *zap.Logger) *Service {
	return &Service{client: client, control: control, logger: logger}
}

// Generate fetches the current inventory and requests a recipe keyed on it.
// Empty inventory short-circuits into NO_INGREDIENTS without a generation
// call; a backend 400 on generation means the same thing and maps to the
// same code, never to a generic failure.
func (s *Service) Generate(ctx context.Context, sess *session.Session) (*recipe.Recipe, error) {
	creds := s.control.Credentials(sess)

	items, err := s.client.Inventory(ctx, creds)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NewNoIngredientsError()
	}

	r, err := s.client.GenerateRecipe(ctx, creds, items)
	if err != nil {
		return nil, mapGenerateError(err)
	}
	return r, nil
}

// GenerateCustom runs the same flow with dietary, cuisine and free-text
// constraints attached.
func (s *Service) GenerateCustom(ctx context.Context, sess *session.Session, constraints api.CustomRecipeConstraints) (*recipe.Recipe, error) {
	creds := s.control.Credentials(sess)

	items, err := s.client.Inventory(ctx, creds)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NewNoIngredientsError()
	}

	r, err := s.client.GenerateCustomRecipe(ctx, creds, items, constraints)
	if err != nil {
		return nil, mapGenerateError(err)
	}
	return r, nil
}

func mapGenerateError(err error) error {
	if apperrors.Is(err, apperrors.CodeBadRequest) {
		return apperrors.NewNoIngredientsError()
	}
	return err
}

// Chat appends the user's message to the transcript immediately, sends the
// full transcript plus recipe context, and appends exactly one assistant
// message: the reply, or the fallback text when the call fails. The user's
// own message is never lost or duplicated.
func (s *Service) Chat(ctx context.Context, sess *session.Session, transcript *recipe.Transcript, current *recipe.Recipe, message string) (recipe.Message, error) {
	transcript.AppendUser(message)

	req := api.ChatRequest{Messages: transcript.Messages()}
	if current != nil {
		req.RecipeName = current.RecipeName
		req.Description = current.Description
		req.Ingredients = current.Ingredients
		req.Steps = current.Steps
	}

	reply, err := s.client.ChatRecipe(ctx, s.control.Credentials(sess), req)
	if err != nil {
		s.logger.Warn("Chat call failed", zap.Error(err))
		transcript.AppendAssistant(FallbackReply)
		return recipe.Message{Role: recipe.RoleAssistant, Content: FallbackReply}, err
	}

	transcript.AppendAssistant(reply.Content)
	return recipe.Message{Role: recipe.RoleAssistant, Content: reply.Content}, nil
}
