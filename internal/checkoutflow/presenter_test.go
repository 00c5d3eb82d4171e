package checkoutflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenteredSpec(t *testing.T) {
	spec := CenteredSpec("https://checkout.example.test/x", Screen{Width: 1440, Height: 900})
	assert.Equal(t, 500, spec.Width)
	assert.Equal(t, 700, spec.Height)
	assert.Equal(t, 470, spec.Left)
	assert.Equal(t, 100, spec.Top)
	assert.Equal(t, "width=500,height=700,left=470,top=100,scrollbars=yes,resizable=yes", spec.Features())

	small := CenteredSpec("u", Screen{Width: 320, Height: 480})
	assert.Equal(t, 0, small.Left)
	assert.Equal(t, 0, small.Top)
}

func TestPopupPresenterOpensWindow(t *testing.T) {
	opener := &fakeOpener{}
	nav := &fakeNavigator{}
	redirect, err := NewRedirectPresenter(nav)
	require.NoError(t, err)
	presenter, err := NewPopupPresenter(opener, Screen{Width: 1000, Height: 800}, redirect)
	require.NoError(t, err)

	handle, err := presenter.Present(context.Background(), "https://checkout.example.test/a")
	require.NoError(t, err)
	assert.True(t, handle.Polls())
	assert.False(t, handle.Closed())
	require.Len(t, opener.specs, 1)
	assert.Equal(t, "https://checkout.example.test/a", opener.specs[0].URL)
	assert.Empty(t, nav.urls)

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())
	assert.True(t, handle.Closed())
	assert.Equal(t, 1, opener.current().closes())
}

func TestPopupHandleSkipsCloseWhenDonorClosedIt(t *testing.T) {
	opener := &fakeOpener{}
	redirect, _ := NewRedirectPresenter(&fakeNavigator{})
	presenter, _ := NewPopupPresenter(opener, Screen{}, redirect)

	handle, err := presenter.Present(context.Background(), "https://checkout.example.test/a")
	require.NoError(t, err)
	opener.current().dismiss()

	require.NoError(t, handle.Close())
	assert.Equal(t, 0, opener.current().closes())
}

func TestPopupPresenterFallsBackToRedirect(t *testing.T) {
	cases := map[string]*fakeOpener{
		"blocked":    {blocked: true},
		"open error": {err: errors.New("no display")},
	}
	for name, opener := range cases {
		t.Run(name, func(t *testing.T) {
			nav := &fakeNavigator{}
			redirect, _ := NewRedirectPresenter(nav)
			presenter, _ := NewPopupPresenter(opener, Screen{}, redirect)

			handle, err := presenter.Present(context.Background(), "https://checkout.example.test/b")
			require.NoError(t, err)
			assert.False(t, handle.Polls())
			assert.Equal(t, []string{"https://checkout.example.test/b"}, nav.urls)
		})
	}
}

func TestPresentersRejectEmptyURL(t *testing.T) {
	redirect, _ := NewRedirectPresenter(&fakeNavigator{})
	_, err := redirect.Present(context.Background(), " ")
	require.Error(t, err)

	popup, _ := NewPopupPresenter(&fakeOpener{}, Screen{}, redirect)
	_, err = popup.Present(context.Background(), "")
	require.Error(t, err)
}

func TestRedirectPresenterNavigateError(t *testing.T) {
	redirect, _ := NewRedirectPresenter(&fakeNavigator{err: errors.New("closed")})
	_, err := redirect.Present(context.Background(), "https://checkout.example.test/c")
	require.Error(t, err)
}

func TestPresenterConstructorsRequireDependencies(t *testing.T) {
	_, err := NewRedirectPresenter(nil)
	require.Error(t, err)
	_, err = NewPopupPresenter(nil, Screen{}, redirectHandlePresenter{})
	require.Error(t, err)
	_, err = NewPopupPresenter(&fakeOpener{}, Screen{}, nil)
	require.Error(t, err)
}

type redirectHandlePresenter struct{}

func (redirectHandlePresenter) Present(context.Context, string) (PresentationHandle, error) {
	return redirectHandle{}, nil
}
