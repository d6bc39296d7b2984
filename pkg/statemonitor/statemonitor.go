// Package statemonitor samples the desktop so the assistant knows which game
// is in front and how loaded the machine is.
package statemonitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-vgo/robotgo"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemState is one sample of the desktop. Negative usage values mean the
// sample failed.
type SystemState struct {
	ForegroundTitle   string
	ForegroundProcess string
	CPUUsage          float64
	MemoryUsage       float64
}

// Monitor builds the game context attached to every analysis request.
type Monitor struct {
	gameName string
	detect   bool
	logger   *slog.Logger

	foreground  func() (string, int)
	processName func(ctx context.Context, pid int32) (string, error)
	cpuPercent  func(ctx context.Context) (float64, error)
	memPercent  func(ctx context.Context) (float64, error)
}

// New returns a Monitor. A non-empty gameName always wins over detection;
// with detect set and no name, the foreground window title is used.
func New(gameName string, detect bool) *Monitor {
	return &Monitor{
		gameName:    gameName,
		detect:      detect,
		logger:      slog.Default().With("component", "statemonitor"),
		foreground:  foregroundWindow,
		processName: processName,
		cpuPercent:  cpuPercent,
		memPercent:  memPercent,
	}
}

func foregroundWindow() (string, int) {
	return robotgo.GetTitle(), robotgo.GetPid()
}

func processName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

func cpuPercent(ctx context.Context) (float64, error) {
	usages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(usages) == 0 {
		return 0, nil
	}
	return usages[0], nil
}

func memPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// GetCurrentState samples the foreground window and system load. Failures
// are joined into the returned error; the state is never nil.
func (m *Monitor) GetCurrentState(ctx context.Context) (*SystemState, error) {
	state := &SystemState{}
	var errs []error

	title, pid := m.foreground()
	state.ForegroundTitle = title
	if pid > 0 {
		name, err := m.processName(ctx, int32(pid))
		if err != nil {
			errs = append(errs, fmt.Errorf("resolving pid %d: %w", pid, err))
		} else {
			state.ForegroundProcess = name
		}
	}

	if cpuUsage, err := m.cpuPercent(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sampling cpu: %w", err))
		state.CPUUsage = -1
	} else {
		state.CPUUsage = cpuUsage
	}

	if memUsage, err := m.memPercent(ctx); err != nil {
		errs = append(errs, fmt.Errorf("sampling memory: %w", err))
		state.MemoryUsage = -1
	} else {
		state.MemoryUsage = memUsage
	}

	return state, errors.Join(errs...)
}

// GameContext returns the game name and the additional context for the next
// request. Sampling failures are logged and leave their keys out.
func (m *Monitor) GameContext(ctx context.Context) (string, map[string]string) {
	state, err := m.GetCurrentState(ctx)
	if err != nil {
		m.logger.Debug("Partial system state", "error", err)
	}

	extra := map[string]string{}
	if state.CPUUsage >= 0 {
		extra["cpu_percent"] = strconv.FormatFloat(state.CPUUsage, 'f', 1, 64)
	}
	if state.MemoryUsage >= 0 {
		extra["memory_percent"] = strconv.FormatFloat(state.MemoryUsage, 'f', 1, 64)
	}
	if fg := describeForeground(state); fg != "" {
		extra["foreground_window"] = fg
	}

	name := m.gameName
	if name == "" && m.detect {
		name = state.ForegroundProcess
		if name == "" {
			name = state.ForegroundTitle
		}
	}
	return name, extra
}

func describeForeground(state *SystemState) string {
	switch {
	case state.ForegroundTitle != "" && state.ForegroundProcess != "":
		return fmt.Sprintf("%s (%s)", state.ForegroundTitle, state.ForegroundProcess)
	case state.ForegroundTitle != "":
		return state.ForegroundTitle
	default:
		return state.ForegroundProcess
	}
}
