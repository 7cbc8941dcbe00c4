package domain

// ErrorKind — вид ошибки pipeline в структурированном объекте провала.
//
// Таксономия:
//
//	ConfigurationError     — неизвестный pipeline/activity/transform при
//	                         загрузке или резолве. Фатально, без retry.
//	TransformError         — transform не смог нормализовать данные.
//	                         Без retry: повтор не исправит форму данных.
//	ActivityExecutionError — activity упала после исчерпания своего
//	                         retry-бюджета.
//	DiscoveryError         — control plane недоступен целиком.
type ErrorKind string

const (
	ErrorKindConfiguration     ErrorKind = "ConfigurationError"
	ErrorKindTransform         ErrorKind = "TransformError"
	ErrorKindActivityExecution ErrorKind = "ActivityExecutionError"
	ErrorKindDiscovery         ErrorKind = "DiscoveryError"
)
