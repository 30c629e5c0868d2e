package subworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neul-labs/fastworker-go/config"
	"github.com/neul-labs/fastworker-go/serializer"
	"github.com/neul-labs/fastworker-go/task"
	"github.com/neul-labs/fastworker-go/transport"
)

func TestStart_RequiresWorkerIDAndControlPlaneAddress(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WorkerID = ""
	sw := New(cfg, task.NewRegistry(nil), nil)
	assert.Error(t, sw.Start())

	cfg2 := config.DefaultConfig()
	cfg2.ControlPlaneAddress = ""
	sw2 := New(cfg2, task.NewRegistry(nil), nil)
	assert.Error(t, sw2.Start())
}

// TestStart_RegistersWithControlPlane drives Start() against a fake
// control plane management endpoint and confirms the subworker marks
// itself registered after receiving a "registered" ack.
func TestStart_RegistersWithControlPlane(t *testing.T) {
	hub, err := transport.ListenBus("tcp://127.0.0.1:19500")
	assert.NoError(t, err)
	defer hub.Close()

	mgmtLn, err := transport.ListenReqRep("tcp://127.0.0.1:19511")
	assert.NoError(t, err)
	defer mgmtLn.Close()

	go func() {
		ex, err := mgmtLn.Accept()
		if err != nil {
			return
		}
		defer ex.Close()
		if _, err := ex.Recv(); err != nil {
			return
		}
		ack := registrationAck{Status: "registered", SubworkerID: "sw-1"}
		data, _ := serializer.Serialize(nil, serializer.FormatJSON, ack)
		_ = ex.Send(data)
	}()

	cfg := config.DefaultConfig()
	cfg.WorkerID = "sw-1"
	cfg.BaseAddress = "tcp://127.0.0.1:19520"
	cfg.ControlPlaneAddress = "tcp://127.0.0.1:19506"
	cfg.DiscoveryAddress = "tcp://127.0.0.1:19500"

	sw := New(cfg, task.NewRegistry(nil), nil)
	assert.NoError(t, sw.Start())
	defer sw.Stop()

	assert.True(t, sw.registered)
}

func TestHandleExchange_ExecutesRegisteredTask(t *testing.T) {
	hub, err := transport.ListenBus("tcp://127.0.0.1:19501")
	assert.NoError(t, err)
	defer hub.Close()

	mgmtLn, err := transport.ListenReqRep("tcp://127.0.0.1:19531")
	assert.NoError(t, err)
	defer mgmtLn.Close()
	go func() {
		ex, err := mgmtLn.Accept()
		if err != nil {
			return
		}
		defer ex.Close()
		_, _ = ex.Recv()
		ack := registrationAck{Status: "registered", SubworkerID: "sw-2"}
		data, _ := serializer.Serialize(nil, serializer.FormatJSON, ack)
		_ = ex.Send(data)
	}()

	registry := task.NewRegistry(nil)
	registry.RegisterFunc("double", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return args[0].(float64) * 2, nil
	})

	cfg := config.DefaultConfig()
	cfg.WorkerID = "sw-2"
	cfg.BaseAddress = "tcp://127.0.0.1:19540"
	cfg.ControlPlaneAddress = "tcp://127.0.0.1:19526"
	cfg.DiscoveryAddress = "tcp://127.0.0.1:19501"

	sw := New(cfg, registry, nil)
	assert.NoError(t, sw.Start())
	defer sw.Stop()

	tk := task.New("double", []any{float64(10)}, nil, task.PriorityNormal)
	addr := transport.FormatAddress("tcp", "127.0.0.1", 19540+task.PriorityNormal.Offset())

	conn, err := transport.DialReqRep(addr)
	assert.NoError(t, err)
	defer conn.Close()

	data, _ := serializer.Serialize(nil, serializer.FormatJSON, tk)
	assert.NoError(t, conn.Send(data))

	reply, err := conn.RecvTimeout(2 * time.Second)
	assert.NoError(t, err)

	var result task.Result
	assert.NoError(t, serializer.Deserialize(nil, serializer.FormatJSON, reply, &result))
	assert.Equal(t, task.StatusSuccess, result.Status)
	assert.Equal(t, float64(20), result.Result)
}
