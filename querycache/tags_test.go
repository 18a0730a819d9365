package querycache_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/querycache"
)

func TestInvalidationTable(t *testing.T) {
	table := querycache.NewInvalidationTable().
		Entity("Route", "Driver").
		Mutation("routes.create", querycache.InvalidatesList("Route")).
		Mutation("routes.update", querycache.InvalidatesListAndItem("Route")).
		Mutation("drivers.updateStatus", querycache.InvalidatesListAndItem("Driver"), querycache.InvalidatesList("Route"))

	require.Equal(t, []querycache.Tag{{Type: "Route", ID: "LIST"}}, table.Invalidates("routes.create", ""))
	require.Equal(t, []querycache.Tag{{Type: "Route", ID: "LIST"}, {Type: "Route", ID: "r1"}}, table.Invalidates("routes.update", "r1"))
	require.Equal(t, []querycache.Tag{
		{Type: "Driver", ID: "LIST"},
		{Type: "Driver", ID: "d1"},
		{Type: "Route", ID: "LIST"},
	}, table.Invalidates("drivers.updateStatus", "d1"))
	require.Nil(t, table.Invalidates("unknown", "x"))

	require.Equal(t, []querycache.Tag{
		{Type: "Route", ID: "LIST"},
		{Type: "Route", ID: "a"},
		{Type: "Route", ID: "b"},
	}, table.Provides("Route", "a", "b"))
	require.Equal(t, []querycache.Tag{{Type: "Route", ID: "a"}}, table.ProvidesItem("Route", "a"))

	require.Equal(t, []string{"drivers.updateStatus", "routes.create", "routes.update"}, table.Mutations())
	require.Equal(t, []string{"Driver", "Route"}, table.Entities())
	require.Equal(t, "Route:LIST", querycache.ListTag("Route").String())
}
