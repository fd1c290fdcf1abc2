package errors

// Service codes (AA)
const (
	// ServiceCommon is for errors shared by all services.
	ServiceCommon = 0

	// ServiceRAG is for the retrieval and generation service.
	ServiceRAG = 20
)

// Category codes (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryAuth       = 2
	CategoryPermission = 3
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
	// CategoryPayment covers billing and credit errors (402).
	CategoryPayment = 13
)

// MakeCode creates an error code from service, category, and sequence.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits a code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// GetCategory returns the category part of a code.
func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError reports whether the code belongs to a 4xx category.
func IsClientError(code int) bool {
	category := GetCategory(code)
	return (category >= CategoryRequest && category <= CategoryRateLimit) || category == CategoryPayment
}

// IsServerError reports whether the code belongs to a 5xx category.
func IsServerError(code int) bool {
	category := GetCategory(code)
	return category >= CategoryInternal && category <= CategoryConfig
}
