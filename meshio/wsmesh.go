package meshio

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/soypat/tetramesh"
	"github.com/soypat/tetramesh/mesher"
)

// Websocket wire message types.
const (
	msgUpdateMesh uint8 = 1
	msgRemoveMesh uint8 = 2
)

// wsClient pairs a connection with its write lock. The websocket
// package allows at most one writer per connection at a time, so every
// write to conn must hold mu.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, msg)
}

// WSSink is a chunk.Sink that broadcasts generated mesh batches to
// websocket clients as binary messages. Late joining clients receive
// the current resident set on connect.
type WSSink struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu    sync.Mutex
	conns map[*wsClient]struct{}
	// cache holds the latest encoded update per chunk for replay.
	cache map[tetramesh.V3i][]byte
}

// NewWSSink returns a sink ready to accept websocket clients.
// A nil logger disables logging.
func NewWSSink(log *zap.Logger) *WSSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSSink{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[*wsClient]struct{}),
		cache: make(map[tetramesh.V3i][]byte),
	}
}

// ServeHTTP upgrades the request to a websocket connection and replays
// the resident chunk set to the new client.
func (s *WSSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.log.Info("mesh client connected", zap.String("remote", conn.RemoteAddr().String()))
	c := &wsClient{conn: conn}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	replay := make([][]byte, 0, len(s.cache))
	for _, msg := range s.cache {
		replay = append(replay, msg)
	}
	// Hold the client's write lock through the replay so a concurrent
	// broadcast cannot interleave with the resident set hand off. Any
	// update cached after this snapshot reaches the client through
	// broadcast once the lock is released.
	c.mu.Lock()
	s.mu.Unlock()
	for _, msg := range replay {
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.mu.Unlock()
			s.drop(c)
			return
		}
	}
	c.mu.Unlock()
	// Reader loop only to observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(c)
				return
			}
		}
	}()
}

func (s *WSSink) drop(c *wsClient) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if ok {
		c.conn.Close()
		s.log.Info("mesh client disconnected")
	}
}

// UpdateMesh encodes the chunk's batches and broadcasts them.
func (s *WSSink) UpdateMesh(index tetramesh.V3i, batches []mesher.MeshBatch) error {
	msg := encodeUpdate(index, batches)
	s.mu.Lock()
	s.cache[index] = msg
	s.mu.Unlock()
	s.broadcast(msg)
	return nil
}

// RemoveMesh broadcasts retirement of a chunk's meshes.
func (s *WSSink) RemoveMesh(index tetramesh.V3i) error {
	s.mu.Lock()
	delete(s.cache, index)
	s.mu.Unlock()
	s.broadcast(encodeRemove(index))
	return nil
}

func (s *WSSink) broadcast(msg []byte) {
	s.mu.Lock()
	conns := make([]*wsClient, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.write(msg); err != nil {
			s.drop(c)
		}
	}
}

// Close disconnects all clients.
func (s *WSSink) Close() error {
	s.mu.Lock()
	conns := make([]*wsClient, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*wsClient]struct{})
	s.mu.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}
	return nil
}

// encodeUpdate packs an update message:
//  u8 type, 3*i32 chunk index, u32 batch count, then per batch
//  u32 vertex count, u32 index count, 6*f32 bounds,
//  positions, normals (3*f32 each) and u32 indices.
func encodeUpdate(index tetramesh.V3i, batches []mesher.MeshBatch) []byte {
	var b bytes.Buffer
	b.WriteByte(msgUpdateMesh)
	putIndex(&b, index)
	binary.Write(&b, binary.LittleEndian, uint32(len(batches)))
	for i := range batches {
		batch := &batches[i]
		binary.Write(&b, binary.LittleEndian, uint32(len(batch.Positions)))
		binary.Write(&b, binary.LittleEndian, uint32(len(batch.Indices)))
		bounds := [6]float32{
			float32(batch.Bounds.Min.X), float32(batch.Bounds.Min.Y), float32(batch.Bounds.Min.Z),
			float32(batch.Bounds.Max.X), float32(batch.Bounds.Max.Y), float32(batch.Bounds.Max.Z),
		}
		binary.Write(&b, binary.LittleEndian, bounds)
		binary.Write(&b, binary.LittleEndian, batch.Positions)
		binary.Write(&b, binary.LittleEndian, batch.Normals)
		binary.Write(&b, binary.LittleEndian, batch.Indices)
	}
	return b.Bytes()
}

func encodeRemove(index tetramesh.V3i) []byte {
	var b bytes.Buffer
	b.WriteByte(msgRemoveMesh)
	putIndex(&b, index)
	return b.Bytes()
}

func putIndex(b *bytes.Buffer, index tetramesh.V3i) {
	binary.Write(b, binary.LittleEndian, [3]int32{
		int32(index[0]), int32(index[1]), int32(index[2]),
	})
}
