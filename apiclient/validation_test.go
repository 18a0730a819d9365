package apiclient_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/apiclient"
)

type fuelUpdate struct {
	VehicleID string  `json:"vehicleId" validate:"required"`
	Level     float64 `json:"fuelLevel" validate:"gte=0,lte=100"`
}

func TestValidate(t *testing.T) {
	require.NoError(t, apiclient.Validate(fuelUpdate{VehicleID: "v1", Level: 40}))

	err := apiclient.Validate(fuelUpdate{Level: 140})
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, apiclient.Validation, apiErr.Kind)
	require.Len(t, apiErr.Fields, 2)
	require.Equal(t, "vehicleId", apiErr.Fields[0].Field)
	require.Equal(t, "vehicleId is required", apiErr.UserMessage())
	require.Equal(t, "fuelLevel must be less than or equal to 100", apiErr.Fields[1].Message)
	require.False(t, apiErr.Retryable())
}

func TestUserMessage(t *testing.T) {
	require.Equal(t, "Something went wrong. Please try again.", apiclient.UserMessage(errors.New("boom")))
	err := &apiclient.Error{Kind: apiclient.Unauthorized, UserText: "Invalid username or password."}
	require.Equal(t, "Invalid username or password.", apiclient.UserMessage(err))
	require.Contains(t, apiclient.UserMessage(&apiclient.Error{Kind: apiclient.NetworkError}), "Unable to reach the server")
}
