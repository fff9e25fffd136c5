package errors

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackDepth = 32

type stack []uintptr

// callers 记录调用方堆栈，跳过runtime.Callers、callers以及上报函数本身
func callers() *stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(3, pcs)
	st := stack(pcs[0:n])
	return &st
}

// fullStack 以 "function file:line" 格式返回堆栈，过滤runtime帧
func (s *stack) fullStack() []string {
	frames := runtime.CallersFrames(*s)
	lines := make([]string, 0, len(*s))
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			lines = append(lines, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	// 上报器按 stacks[2] 限流，保证下标可用
	for len(lines) < 3 {
		lines = append(lines, "")
	}
	return lines
}
