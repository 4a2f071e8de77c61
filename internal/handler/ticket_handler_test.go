package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/handler"
	"github.com/algoprep/algoprep-api/internal/service"
)

type mockTicketService struct {
	raised   dto.TicketRaiseRequest
	response dto.TicketResponse
	err      error
}

func (m *mockTicketService) Raise(_ context.Context, _ uint, payload dto.TicketRaiseRequest) (dto.TicketResponse, error) {
	m.raised = payload
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) Available(context.Context, uint) ([]dto.TicketResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.TicketResponse{m.response}, nil
}

func (m *mockTicketService) RaisedBy(context.Context, uint) ([]dto.TicketResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []dto.TicketResponse{m.response}, nil
}

func (m *mockTicketService) ProvideSolution(context.Context, uint, uint, dto.SolutionCreateRequest) (dto.TicketResponse, error) {
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) AcceptSolution(context.Context, uint, uint, uint) (dto.TicketResponse, error) {
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) RequestVideoMeet(context.Context, uint, uint) (dto.TicketResponse, error) {
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) AcceptVideoMeet(context.Context, uint, uint, dto.VideoMeetAcceptRequest) (dto.TicketResponse, error) {
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) Close(context.Context, uint, uint) (dto.TicketResponse, error) {
	if m.err != nil {
		return dto.TicketResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockTicketService) MarkVideoActive(context.Context, string) error { return m.err }
func (m *mockTicketService) EndVideoMeet(context.Context, string) error    { return m.err }

func newTicketTestApp(svc service.TicketService, authenticated bool) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/tickets", func(c *fiber.Ctx) error {
		if authenticated {
			c.Locals("user_id", uint(42))
		}
		return c.Next()
	})
	handler.NewTicketHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard)).Register(group)
	return app
}

func decodeResponse(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestTicketHandlerRaiseSuccess(t *testing.T) {
	svc := &mockTicketService{response: dto.TicketResponse{ID: 7, QuestionID: 3, RaisedByID: 42, Status: "open"}}
	app := newTicketTestApp(svc, true)

	body, err := json.Marshal(dto.TicketRaiseRequest{QuestionID: 3})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var response struct {
		Success bool               `json:"success"`
		Data    dto.TicketResponse `json:"data"`
		Message string             `json:"message"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, uint(7), response.Data.ID)
	require.Equal(t, uint(3), svc.raised.QuestionID)
}

func TestTicketHandlerRequiresAuthentication(t *testing.T) {
	app := newTicketTestApp(&mockTicketService{}, false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTicketHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "ticket missing", err: service.ErrTicketNotFound, statusCode: fiber.StatusNotFound},
		{name: "question missing", err: service.ErrQuestionNotFound, statusCode: fiber.StatusNotFound},
		{name: "solution missing", err: service.ErrSolutionNotFound, statusCode: fiber.StatusNotFound},
		{name: "forbidden", err: service.ErrTicketForbidden, statusCode: fiber.StatusForbidden},
		{name: "conflict", err: service.ErrTicketConflict, statusCode: fiber.StatusConflict},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTicketTestApp(&mockTicketService{err: tc.err}, true)

			body, err := json.Marshal(dto.SolutionCreateRequest{Body: "try memoization"})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets/5/solutions", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestTicketHandlerRejectsBadIdentifiers(t *testing.T) {
	app := newTicketTestApp(&mockTicketService{}, true)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tickets/not-a-number/close", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTicketHandlerVideoAcceptAllowsEmptyBody(t *testing.T) {
	svc := &mockTicketService{response: dto.TicketResponse{ID: 5, Status: "video-accepted", VideoMeetLink: "room-1"}}
	app := newTicketTestApp(svc, true)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/tickets/5/video-accept", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
