package fault_test

import (
	"net/http"
	"testing"

	"github.com/agubarev/chapi/pkg/fault"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	a := assert.New(t)

	err := fault.NotFound("acme:eng", "group %s does not exist", "acme:eng")
	a.True(fault.IsNotFound(err))
	a.False(fault.IsConflict(err))
	a.Equal(http.StatusNotFound, fault.StatusCode(err))
	a.EqualError(err, "not found: group acme:eng does not exist")

	var fe *fault.Error
	a.True(errors.As(err, &fe))
	a.Equal("acme:eng", fe.Subject)

	a.Equal(http.StatusBadRequest, fault.StatusCode(fault.BadRequest("", "missing email")))
	a.Equal(http.StatusConflict, fault.StatusCode(fault.Conflict("a@x.com", "duplicate")))
	a.Equal(http.StatusInternalServerError, fault.StatusCode(errors.New("boom")))
	a.Equal(http.StatusOK, fault.StatusCode(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	a := assert.New(t)

	cause := errors.New("key not found")
	err := fault.Wrap(fault.KNotFound, cause, "a@x.com", "user a@x.com")
	a.Equal("not found: user a@x.com: key not found", err.Error())
	a.Equal(cause, errors.Cause(err))

	wrapped := errors.Wrap(err, "failed to validate user")
	a.True(fault.IsNotFound(wrapped))
	a.Equal(fault.KNotFound, fault.KindOf(wrapped))

	a.Nil(fault.Wrap(fault.KConflict, nil, "x", "nothing"))
	a.Equal(fault.KUnknown, fault.KindOf(nil))
}
