package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务代码: 20
// 错误码格式: AABBCCC

var (
	// 请求参数错误 (类别 01)
	ErrRAGInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrRAGInvalidScope   = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Visibility scope must be public, system or private", "可见范围必须为 public、system 或 private"))
	ErrRAGEmptyContent   = Register(New(MakeCode(ServiceRAG, CategoryRequest, 3), http.StatusBadRequest, codes.InvalidArgument, "Document content is empty", "文档内容为空"))
	ErrRAGOwnerRequired  = Register(New(MakeCode(ServiceRAG, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Private documents require an owner", "私有文档必须指定所有者"))

	// 准入错误 (类别 02/04/13)
	ErrRAGIdentityRequired    = Register(New(MakeCode(ServiceRAG, CategoryAuth, 1), http.StatusUnauthorized, codes.Unauthenticated, "Please sign in to use the assistant", "请登录后使用"))
	ErrRAGAccountNotFound     = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Account not found", "账户不存在"))
	ErrRAGConversationMissing = Register(New(MakeCode(ServiceRAG, CategoryResource, 2), http.StatusNotFound, codes.NotFound, "Conversation not found", "会话不存在"))
	ErrRAGInsufficientCredits = Register(New(MakeCode(ServiceRAG, CategoryPayment, 1), http.StatusPaymentRequired, codes.FailedPrecondition, "Insufficient credits, please upgrade your plan", "积分不足，请升级套餐"))

	// 处理错误 (类别 07/10)
	ErrRAGQueryFailed        = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Query failed", "查询失败"))
	ErrRAGIndexFailed        = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrRAGBillingFailed      = Register(New(MakeCode(ServiceRAG, CategoryDatabase, 1), http.StatusInternalServerError, codes.Internal, "Failed to record usage", "记录用量失败"))
	ErrRAGServiceUnavailable = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "RAG service unavailable", "RAG 服务不可用"))
)
