// Package wire implements the orchestrator-to-node serialized
// schedule table layout. The
// layout is byte-reverse-order — the writer appends fields forward in
// their natural order, but every length-prefixed string carries its
// byte count *after* its content instead of before, so a reader that
// starts at the tail of the buffer and walks backward can parse the
// whole structure without ever seeking forward.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/types"
)

const (
	maxWorkloadIDLen = 63
	maxTaskNameLen   = 15
	maxNodeIDLen     = 63
)

// Policy codes for the 32-bit sched_policy enum on the wire.
const (
	policyNormal uint32 = 0
	policyFIFO   uint32 = 1
	policyRR     uint32 = 2
)

func policyToCode(p types.SchedPolicy) uint32 {
	switch p {
	case types.SchedFIFO:
		return policyFIFO
	case types.SchedRR:
		return policyRR
	default:
		return policyNormal
	}
}

func codeToPolicy(c uint32) types.SchedPolicy {
	switch c {
	case policyFIFO:
		return types.SchedFIFO
	case policyRR:
		return types.SchedRR
	default:
		return types.SchedNormal
	}
}

// Encode serializes a schedule table into the tail-first wire format.
func Encode(tbl *types.ScheduleTable) ([]byte, error) {
	if len(tbl.WorkloadID) > maxWorkloadIDLen {
		return nil, orcherr.Wrap(orcherr.Network, "wire.Encode", fmt.Errorf("workload_id exceeds %d chars", maxWorkloadIDLen))
	}

	w := &writer{}
	w.writeString(tbl.WorkloadID)
	w.writeU64(tbl.HyperperiodUS)

	for _, t := range tbl.Tasks {
		if len(t.AssignedNode) > maxNodeIDLen {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Encode", fmt.Errorf("assigned_node exceeds %d chars", maxNodeIDLen))
		}
		name := t.Name
		if len(name) > maxTaskNameLen {
			name = name[:maxTaskNameLen]
		}
		w.writeString(name)
		w.writeU32(uint32(t.Priority))
		w.writeU32(policyToCode(t.Policy))
		w.writeU32(t.PeriodUS)
		w.writeU32(t.ReleaseUS)
		w.writeU32(t.RuntimeUS)
		w.writeU32(t.DeadlineUS)
		w.writeU64(cpuToBitmask(t.AssignedCPU))
		w.writeU32(uint32(t.MaxDMiss))
		w.writeString(t.AssignedNode)
	}

	w.writeU32(uint32(len(tbl.Tasks)))
	return w.buf, nil
}

// Decode deserializes a buffer produced by Encode, reading from the tail.
func Decode(data []byte) (*types.ScheduleTable, error) {
	r := &reader{buf: data, pos: len(data)}

	taskCount, err := r.readU32()
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
	}

	tasks := make([]*types.ScheduledTask, taskCount)
	for i := int(taskCount) - 1; i >= 0; i-- {
		assignedNode, err := r.readString(maxNodeIDLen)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		maxDMiss, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		cpuBitmask, err := r.readU64()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		deadlineUS, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		runtimeUS, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		releaseUS, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		periodUS, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		policyCode, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		priority, err := r.readU32()
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}
		name, err := r.readString(maxTaskNameLen)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
		}

		tasks[i] = &types.ScheduledTask{
			Task: types.Task{
				Name:        name,
				Policy:      codeToPolicy(policyCode),
				Priority:    int(priority),
				PeriodUS:    periodUS,
				RuntimeUS:   runtimeUS,
				DeadlineUS:  deadlineUS,
				ReleaseUS:   releaseUS,
				CPUAffinity: bitmaskToCPU(cpuBitmask),
				MaxDMiss:    int(maxDMiss),
			},
			AssignedNode: assignedNode,
			AssignedCPU:  bitmaskToCPU(cpuBitmask),
		}
	}

	hyperperiodUS, err := r.readU64()
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
	}
	workloadID, err := r.readString(maxWorkloadIDLen)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", err)
	}
	if r.pos != 0 {
		return nil, orcherr.Wrap(orcherr.Network, "wire.Decode", fmt.Errorf("%d leading bytes unconsumed", r.pos))
	}

	return &types.ScheduleTable{
		WorkloadID:    workloadID,
		HyperperiodUS: hyperperiodUS,
		Tasks:         tasks,
	}, nil
}

// cpuToBitmask encodes a single assigned CPU identifier as a bit in a
// 64-bit mask: bit N for a CPU identifier that parses as integer N < 64,
// bit 0 otherwise.
func cpuToBitmask(cpu string) uint64 {
	n, ok := parseCPUIndex(cpu)
	if !ok || n >= 64 {
		return 1
	}
	return uint64(1) << uint(n)
}

// bitmaskToCPU is the inverse of cpuToBitmask: the lowest set bit's
// index, as a decimal string.
func bitmaskToCPU(mask uint64) string {
	if mask == 0 {
		return "0"
	}
	for i := 0; i < 64; i++ {
		if mask&(uint64(1)<<uint(i)) != 0 {
			return fmt.Sprintf("%d", i)
		}
	}
	return "0"
}

func parseCPUIndex(cpu string) (int, bool) {
	n := 0
	if cpu == "" {
		return 0, false
	}
	for _, c := range cpu {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

type writer struct {
	buf []byte
}

func (w *writer) writeString(s string) {
	w.buf = append(w.buf, []byte(s)...)
	w.writeU32(uint32(len(s)))
}

func (w *writer) writeU32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) writeU64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) readU32() (uint32, error) {
	if r.pos < 4 {
		return 0, fmt.Errorf("buffer underrun reading u32")
	}
	r.pos -= 4
	return binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4]), nil
}

func (r *reader) readU64() (uint64, error) {
	if r.pos < 8 {
		return 0, fmt.Errorf("buffer underrun reading u64")
	}
	r.pos -= 8
	return binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8]), nil
}

func (r *reader) readString(maxLen int) (string, error) {
	length, err := r.readU32()
	if err != nil {
		return "", err
	}
	if int(length) > maxLen {
		return "", fmt.Errorf("string length %d exceeds limit %d", length, maxLen)
	}
	if r.pos < int(length) {
		return "", fmt.Errorf("buffer underrun reading string content")
	}
	r.pos -= int(length)
	return string(r.buf[r.pos : r.pos+int(length)]), nil
}
