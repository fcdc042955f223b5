package memstore

import (
	"encoding/json"
	"fmt"
	"log"

	"icsdissect/internal/record"
)

// knownProtocols seeds every stream createProtocolStreams checks on
// startup.
var knownProtocols = []string{
	record.ProtoARP, record.ProtoDNS, record.ProtoDNP3, record.ProtoModbus,
	record.ProtoS7Comm, record.ProtoXGTFenet, record.ProtoTCPSession,
	record.ProtoUnknown, record.ProtoDHCP, record.ProtoEtherIP,
	record.ProtoIEC104, record.ProtoMMS, record.ProtoOPCUA, record.ProtoBACnet,
}

const assetCacheTTLSeconds = 3600

// assetInfo is the cached per-IP metadata round-tripped through the store.
type assetInfo struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// Store is the in-memory-store facade (component N): a pool-backed
// synchronous path for PING/GET/PUBLISH-class operations and an
// async-writer-backed path for everything that tolerates drop-on-overflow.
type Store struct {
	pool   *Pool
	writer *Writer
}

// New wires a facade over the given pool and writer.
func New(pool *Pool, writer *Writer) *Store {
	return &Store{pool: pool, writer: writer}
}

// CacheAssetInfo asynchronously stores info under cache:asset:<ip> with a
// TTL, drop-on-overflow.
func (s *Store) CacheAssetInfo(ip string, info assetInfo) {
	body, err := json.Marshal(info)
	if err != nil {
		log.Printf("memstore: marshal asset info for %s: %v", ip, err)
		return
	}
	s.writer.Enqueue(task{
		kind:       taskAssetCache,
		key:        "cache:asset:" + ip,
		ttlSeconds: assetCacheTTLSeconds,
		value:      string(body),
	})
}

// GetAssetInfo synchronously fetches cache:asset:<ip>, returning a
// default-constructed value on miss or parse failure.
func (s *Store) GetAssetInfo(ip string) assetInfo {
	c, err := s.pool.Acquire()
	if err != nil {
		log.Printf("memstore: acquire for GetAssetInfo(%s): %v", ip, err)
		return assetInfo{}
	}
	defer s.pool.Release(c)

	if err := writeCommand(c, "GET", "cache:asset:"+ip); err != nil {
		log.Printf("memstore: GET send failed: %v", err)
		return assetInfo{}
	}
	r, err := readReply(c)
	if err != nil || r.IsNil {
		return assetInfo{}
	}

	var info assetInfo
	if err := json.Unmarshal([]byte(r.Str), &info); err != nil {
		return assetInfo{}
	}
	return info
}

// PushToStream asynchronously appends packetData to streamName and, on
// successful enqueue, also enqueues a stats:count:<protocol> increment.
func (s *Store) PushToStream(streamName, protocol, packetData string) {
	if s.writer.Enqueue(task{kind: taskStreamAppend, stream: streamName, data: packetData}) {
		s.writer.Enqueue(task{kind: taskCounterIncr, key: "stats:count:" + protocol, n: 1})
	}
}

// PublishAlert synchronously publishes payload to channel: alerts must
// never be lost to drop-on-overflow, so this bypasses the async writer.
func (s *Store) PublishAlert(channel, payload string) error {
	c, err := s.pool.Acquire()
	if err != nil {
		return fmt.Errorf("memstore: acquire for PublishAlert: %w", err)
	}
	defer s.pool.Release(c)

	if err := writeCommand(c, "PUBLISH", channel, payload); err != nil {
		return fmt.Errorf("memstore: PUBLISH send failed: %w", err)
	}
	if _, err := readReply(c); err != nil {
		return fmt.Errorf("memstore: PUBLISH reply failed: %w", err)
	}
	return nil
}

// IncrementCounter asynchronously enqueues v individual increments of key.
func (s *Store) IncrementCounter(key string, v int) {
	for i := 0; i < v; i++ {
		s.writer.Enqueue(task{kind: taskCounterIncr, key: key, n: 1})
	}
}

// CreateProtocolStreams idempotently seeds every known protocol's stream:
// checks XINFO STREAM first and only seeds a placeholder entry when the
// stream is absent.
func (s *Store) CreateProtocolStreams() {
	for _, proto := range knownProtocols {
		streamKey := "stream:protocol:" + proto
		if s.streamExists(streamKey) {
			continue
		}
		if err := s.seedStream(streamKey); err != nil {
			log.Printf("memstore: seed stream %s: %v", streamKey, err)
		}
	}
}

func (s *Store) streamExists(streamKey string) bool {
	c, err := s.pool.Acquire()
	if err != nil {
		return false
	}
	defer s.pool.Release(c)

	if err := writeCommand(c, "XINFO", "STREAM", streamKey); err != nil {
		return false
	}
	r, err := readReply(c)
	if err != nil {
		return false
	}
	return !r.IsNil && r.Err == ""
}

func (s *Store) seedStream(streamKey string) error {
	c, err := s.pool.Acquire()
	if err != nil {
		return err
	}
	defer s.pool.Release(c)

	if err := writeCommand(c, "XADD", streamKey, "MAXLEN", "~", itoa(streamMaxLen), "*", "data", "init"); err != nil {
		return err
	}
	_, err = readReply(c)
	return err
}
