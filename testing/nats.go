package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// serverReadyTimeout bounds how long a test waits for the embedded server.
const serverReadyTimeout = 5 * time.Second

// StartEmbeddedNATS starts an in-process NATS server with JetStream and connects one client.
//
// The server listens on a random loopback port and keeps its JetStream store
// in t.TempDir(), so parallel tests never share state. Server and client are
// torn down by t.Cleanup.
//
// Parameters:
//   - t: Test owning the server
//
// Returns:
//   - *server.Server: The embedded server (use ConnectRanks for more clients)
//   - *nats.Conn: Client connection named "rankalloc-test"
//
// Example:
//
//	func TestNATSCollective(t *testing.T) {
//	    _, nc := ratest.StartEmbeddedNATS(t)
//	    c, err := collective.NewNATS(nc, collective.NATSConfig{Prefix: ratest.SessionPrefix(), Size: 1})
//	    require.NoError(t, err)
//	}
func StartEmbeddedNATS(t testing.TB) (*server.Server, *nats.Conn) {
	t.Helper()

	ns := startServer(t)

	return ns, connect(t, ns, "rankalloc-test")
}

// ConnectRanks opens one client connection per rank to ns.
//
// Ranks of a real computation run in separate processes with their own
// connections; tests that need the same message interleaving use this
// instead of sharing one client.
//
// Parameters:
//   - t: Test owning the connections
//   - ns: Server from StartEmbeddedNATS
//   - nrank: Number of connections
//
// Returns:
//   - []*nats.Conn: Connection of each rank, named "rankalloc-rank-<r>"
func ConnectRanks(t testing.TB, ns *server.Server, nrank int) []*nats.Conn {
	t.Helper()

	out := make([]*nats.Conn, nrank)
	for rank := range nrank {
		out[rank] = connect(t, ns, fmt.Sprintf("rankalloc-rank-%d", rank))
	}

	return out
}

func startServer(t testing.TB) *server.Server {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		ServerName: "rankalloc-embedded",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   t.TempDir(),
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		t.Fatalf("embedded NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		t.Fatalf("embedded NATS server not ready after %s", serverReadyTimeout)
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns
}

// connect registers its cleanup after the server's, so the client closes first.
func connect(t testing.TB, ns *server.Server, name string) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Name(name),
		nats.Timeout(2*time.Second),
		nats.NoReconnect(),
	)
	if err != nil {
		t.Fatalf("connect %s to embedded NATS: %v", name, err)
	}
	t.Cleanup(nc.Close)

	return nc
}

// CreateJetStreamKV creates a memory-backed KV bucket on nc for one test.
//
// Parameters:
//   - t: Test owning the bucket
//   - nc: NATS connection (from StartEmbeddedNATS)
//   - bucketName: Name of the KV bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created bucket
//
// Example:
//
//	_, nc := ratest.StartEmbeddedNATS(t)
//	kv := ratest.CreateJetStreamKV(t, nc, "rankalloc-routing")
//	pub := dependent.NewRoutingPublisher(kv, alloc, dependent.RoutingPublisherConfig{})
func CreateJetStreamKV(t testing.TB, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream context: %v", err)
	}

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "rankalloc test bucket " + bucketName,
		History:     4,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		t.Fatalf("create KV bucket %s: %v", bucketName, err)
	}

	return kv
}
