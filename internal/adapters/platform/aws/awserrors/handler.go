// Package awserrors maps AWS SDK failures onto the application error
// taxonomy so the sequencer can tell an authentication problem from a
// duplicate resource from a genuinely failed provisioning call.
package awserrors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

var alreadyExistsCodes = []string{
	// EC2
	"InvalidGroup.Duplicate",
	"InvalidVpcID.Duplicate",
	// RDS
	"DBInstanceAlreadyExists",
	"DBSubnetGroupAlreadyExists",
	// ECR
	"RepositoryAlreadyExistsException",
	// ELBv2
	"DuplicateLoadBalancerName",
	"DuplicateTargetGroupName",
	"DuplicateListener",
	// IAM
	"EntityAlreadyExists",
	// Secrets Manager / CloudWatch Logs / generic
	"ResourceExistsException",
	"ResourceAlreadyExistsException",
	"InvalidParameterException: Creation of service was not idempotent",
}

var notFoundCodes = []string{
	"InvalidVpcID.NotFound",
	"InvalidSubnetID.NotFound",
	"InvalidGroup.NotFound",
	"InvalidInternetGatewayID.NotFound",
	"InvalidRouteTableID.NotFound",
	"InvalidAssociationID.NotFound",
	"DBInstanceNotFound",
	"DBSubnetGroupNotFoundFault",
	"RepositoryNotFoundException",
	"ClusterNotFoundException",
	"ServiceNotFoundException",
	"LoadBalancerNotFound",
	"TargetGroupNotFound",
	"ListenerNotFound",
	"NoSuchEntity",
	"ResourceNotFoundException",
	"EntityNotFoundException",
	"NotFoundException",
}

// Classify wraps err with the application code matching its AWS error
// code. The resource string names what was being touched, for the message.
func Classify(ctx context.Context, err error, resource string) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodePlatformAPIError,
			fmt.Sprintf("context canceled during AWS call for %s", resource))
	}

	code := apiErrorCode(err)
	msg := err.Error()

	if matchesCode(code, msg, alreadyExistsCodes) {
		return errors.WrapUserFacing(err, errors.CodeResourceAlreadyExists,
			fmt.Sprintf("%s already exists", resource),
			"The resource was provisioned before. Run teardown first, or remove the stale resource manually.")
	}

	if matchesCode(code, msg, notFoundCodes) || strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
		return errors.Wrap(err, errors.CodeResourceNotFound,
			fmt.Sprintf("%s not found", resource))
	}

	if strings.Contains(msg, "AuthFailure") ||
		strings.Contains(msg, "UnauthorizedOperation") ||
		strings.Contains(msg, "AccessDenied") ||
		strings.Contains(msg, "ExpiredToken") ||
		strings.Contains(msg, "InvalidClientTokenId") {
		return errors.WrapUserFacing(err, errors.CodePlatformAuthError,
			fmt.Sprintf("AWS authentication failed while provisioning %s", resource),
			"Check the active AWS credentials and their permissions.")
	}

	return errors.Wrap(err, errors.CodePlatformAPIError,
		fmt.Sprintf("AWS call for %s failed", resource))
}

// IsNotFound reports whether err classifies as a missing resource,
// without wrapping it. Teardown uses this to keep going.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.CodeResourceNotFound) {
		return true
	}
	code := apiErrorCode(err)
	return matchesCode(code, err.Error(), notFoundCodes)
}

func apiErrorCode(err error) string {
	// Hand-rolled fakes in tests satisfy this narrower interface.
	if coded, ok := err.(interface{ ErrorCode() string }); ok && coded != nil {
		return coded.ErrorCode()
	}
	var apiErr smithy.APIError
	if stderrs.As(err, &apiErr) && apiErr != nil {
		return apiErr.ErrorCode()
	}
	return ""
}

func matchesCode(code, msg string, candidates []string) bool {
	for _, c := range candidates {
		if code == c || strings.Contains(msg, c) {
			return true
		}
	}
	return false
}
