package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
meters:
  - ref: m1
    device_id: "11"
    name: Main incomer
    location: [Plant A, Building 1]
recipients:
  - id: u1
    email: ann@example.com
    messaging_id: line-ann
  - id: u2
    email: bo@example.com
groups:
  ops: [u1, u2]
`

func TestLoadSeed(t *testing.T) {
	dir := NewDirectory()
	require.NoError(t, dir.LoadSeed([]byte(seedYAML)))

	meters, err := dir.ListMeters(context.Background())
	require.NoError(t, err)
	require.Len(t, meters, 1)
	assert.Equal(t, "Plant A / Building 1", meters[0].Location())

	members, err := dir.ListGroupMembers(context.Background(), "ops")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	recipient, err := dir.GetRecipient(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, recipient)
	assert.Equal(t, "line-ann", recipient.MessagingID)
}

func TestLoadSeedRejectsMeterWithoutDevice(t *testing.T) {
	dir := NewDirectory()
	err := dir.LoadSeed([]byte("meters:\n  - ref: m1\n"))
	assert.Error(t, err)
}
