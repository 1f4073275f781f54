package pipeline

import "fmt"

// State 两阶段流程的状态
type State int

const (
	StateReady State = iota
	StateExtracting
	StateSynthesizing
	StateDone
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateExtracting:
		return "EXTRACTING"
	case StateSynthesizing:
		return "SYNTHESIZING"
	case StateDone:
		return "DONE"
	case StateDegraded:
		return "DEGRADED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal DONE 与 DEGRADED 为终止状态
func (s State) Terminal() bool {
	return s == StateDone || s == StateDegraded
}

// Event 驱动状态迁移的事件
type Event int

const (
	EventStart       Event = iota // 开始提取
	EventExtracted                // 至少一个分块成功
	EventSynthesized              // 综合结果通过校验
	EventFailed                   // 不可恢复的失败，进入降级
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventExtracted:
		return "extracted"
	case EventSynthesized:
		return "synthesized"
	case EventFailed:
		return "failed"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

var transitions = map[State]map[Event]State{
	StateReady: {
		EventStart:  StateExtracting,
		EventFailed: StateDegraded,
	},
	StateExtracting: {
		EventExtracted: StateSynthesizing,
		EventFailed:    StateDegraded,
	},
	StateSynthesizing: {
		EventSynthesized: StateDone,
		EventFailed:      StateDegraded,
	},
}

// On 返回事件触发后的状态，非法迁移返回错误且状态不变
func (s State) On(e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("非法状态迁移: %s --%s-->", s, e)
}
