package http

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/crmarques/quayconf/faults"
)

func classifyTransportError(host string, err error) error {
	if isTLSFailure(err) {
		return faults.NewTypedError(
			faults.TLSError,
			fmt.Sprintf("Could not establish a secure connection to %s", host),
			err,
		)
	}
	return transportError(host, err)
}

func transportError(host string, err error) error {
	return faults.NewTypedError(
		faults.TransportError,
		fmt.Sprintf("Network error when trying to connect to %s", host),
		err,
	)
}

func isTLSFailure(err error) bool {
	var verificationErr *tls.CertificateVerificationError
	var unknownAuthorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	var recordHeaderErr tls.RecordHeaderError
	var alertErr tls.AlertError

	return errors.As(err, &verificationErr) ||
		errors.As(err, &unknownAuthorityErr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr) ||
		errors.As(err, &recordHeaderErr) ||
		errors.As(err, &alertErr)
}

func categoryOf(err error) faults.ErrorCategory {
	var typedErr *faults.TypedError
	if errors.As(err, &typedErr) {
		return typedErr.Category
	}
	return faults.InternalError
}
