package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"

	CodeStateReadError  Code = "STATE_READ_ERROR"
	CodeStateWriteError Code = "STATE_WRITE_ERROR"
	CodeStateParseError Code = "STATE_PARSE_ERROR"

	CodePlatformAPIError  Code = "PLATFORM_API_ERROR"
	CodePlatformAuthError Code = "PLATFORM_AUTH_ERROR"

	CodeResourceNotFound      Code = "RESOURCE_NOT_FOUND"
	CodeResourceAlreadyExists Code = "RESOURCE_ALREADY_EXISTS"
	CodeMissingDependency     Code = "MISSING_DEPENDENCY"
	CodeProvisioningFailed    Code = "PROVISIONING_FAILED"
	CodeTeardownFailed        Code = "TEARDOWN_FAILED"
	CodeReadinessTimeout      Code = "READINESS_TIMEOUT"
	CodeImagePublishError     Code = "IMAGE_PUBLISH_ERROR"
)

func (c Code) String() string {
	return string(c)
}
