// Package biz 提供 RAG 服务的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - Router: 判断查询是否需要检索，并在英语/阿拉伯语之间扩展查询
//   - Retriever: 多变体向量检索、访问控制、融合与启发式打分
//   - Judge: 基于 LLM 的相关性重排，失败时原样返回
//   - Orchestrator: 以事件流形式驱动一次完整的对话生成
//   - Ledger / Admission: 计费扣减与准入控制
//   - Indexer: 文档切分、嵌入与入库
//   - Service: 组合以上组件，并管理会话
package biz
