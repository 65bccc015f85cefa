// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 实现基于图的工作流编排与执行引擎。

# 概述

一个 Workflow 是节点（Node）与边（Edge）组成的有向图，带有 startNode、
endNode 和初始 state。Orchestrator 从 startNode 出发逐节点遍历，直到
endNode 执行完成；边可以是静态（固定 to）或动态（rule 或 conditions
列表），循环由图结构本身表达，不做可达性或环检测。

# 核心类型

  - Workflow / Node / Edge     — 静态图结构，定义于 graph.go
  - Validate                   — 遍历前的结构性校验（validator.go）
  - Orchestrator                — 驱动单次执行的遍历算法（orchestrator.go）
  - Execution / NodeExecution   — 一次执行与其节点调用的状态机
  - Journal                     — 持久化执行记录的接口；MemoryJournal 为
    dry-run 请求提供进程内实现（journal.go）
  - ExecutorRegistry / Executor — node.type 到可执行逻辑的解析，内建与
    自定义（子工作流包装）执行器共用同一缓存（registry.go）
  - StreamingContext / EventSink — 流式事件的信封与投递目标，携带嵌套
    深度与路径，支撑子工作流递归时的事件归属（streaming.go）

子包 workflow/dsl 提供模板展开（{{expr}}）、表达式求值与 rule 脚本的
求值器，被 graph.go 的 Edge.Rule / StateAssignment.Rule 直接嵌入。

# 执行模型

Orchestrator.Execute 创建 pending 的 Execution 记录、做结构校验、将状态
置为 running，然后逐节点执行：解析并展开节点配置模板、分派到注册表中的
执行器（或 workflow_executor 保留类型触发的子工作流递归）、原子地应用
该节点的 setState 规则、记录输出、判断是否到达 endNode、再解析出边决定
下一个节点。每一步都会在提供了 EventSink 时发出对应的流式事件。
*/
package workflow
