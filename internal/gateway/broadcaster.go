package gateway

import (
	"strconv"
	"time"
)

// replayCapacity is the number of envelopes retained per channel for gap
// backfill.
const replayCapacity = 500

// Broadcast wraps data in an envelope and fans it out to every client
// subscribed to the channel. The envelope is hand-assembled; json.Marshal on
// the hot path costs roughly 25x more than appending to a preallocated
// buffer.
//
// Envelope shape:
//
//	{"channel":"signal:BTCUSDT","data":{...},"ts":"...","seq":12,"channel_seq":4}
func (h *Hub) Broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.channelSeqs[channel]++
	channelSeq := h.channelSeqs[channel]
	h.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}
	rl := h.replay[channel]
	if rl == nil {
		rl = NewReplayLog(replayCapacity)
		h.replay[channel] = rl
	}
	h.mu.Unlock()

	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')

	rl.Push(channelSeq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.wantsChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
			// Slow consumer; dropping beats stalling the fan-out. The
			// client recovers via channel_seq gap detection.
		}
	}
}
