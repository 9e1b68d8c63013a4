// Package cognito adapts an Amazon Cognito user pool to
// accountauth.MFAProvider. Sign-in uses the USER_PASSWORD_AUTH flow with a
// client secret hash; the user pool decides which second factor to ask for.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/MrEthical07/accountauth"
	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
)

// API is the part of the Cognito client the provider calls.
type API interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
	AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, in *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	AdminEnableUser(ctx context.Context, in *cip.AdminEnableUserInput, optFns ...func(*cip.Options)) (*cip.AdminEnableUserOutput, error)
}

// Config identifies the user pool and app client.
type Config struct {
	UserPoolID   string
	ClientID     string
	ClientSecret string
}

func (c Config) Validate() error {
	if c.UserPoolID == "" {
		return errors.New("cognito user pool id required")
	}
	if c.ClientID == "" {
		return errors.New("cognito client id required")
	}
	return nil
}

// Provider implements accountauth.MFAProvider.
type Provider struct {
	api    API
	config Config
}

// New wraps an existing client, usually cip.NewFromConfig(awsCfg).
func New(api API, cfg Config) (*Provider, error) {
	if api == nil {
		return nil, errors.New("cognito client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Provider{api: api, config: cfg}, nil
}

// NewFromConfig builds the Cognito client from awsCfg.
func NewFromConfig(awsCfg aws.Config, cfg Config) (*Provider, error) {
	return New(cip.NewFromConfig(awsCfg), cfg)
}

// secretHash is base64(HMAC-SHA256(clientSecret, username+clientID)). It is
// empty when the app client has no secret.
func (p *Provider) secretHash(username string) string {
	if p.config.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(p.config.ClientSecret))
	mac.Write([]byte(username + p.config.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (p *Provider) InitiateChallenge(ctx context.Context, email, password string) (*accountauth.ChallengeResult, error) {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if h := p.secretHash(email); h != "" {
		params["SECRET_HASH"] = h
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.config.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, mapError("initiate auth", err)
	}

	if out.ChallengeName != "" {
		return &accountauth.ChallengeResult{
			Challenge: string(out.ChallengeName),
			Session:   aws.ToString(out.Session),
		}, nil
	}
	if out.AuthenticationResult == nil {
		return nil, errors.New("cognito: initiate auth returned neither challenge nor tokens")
	}
	return &accountauth.ChallengeResult{Tokens: toTokens(out.AuthenticationResult)}, nil
}

func (p *Provider) CompleteChallenge(ctx context.Context, email, session, challenge, code string) (*accountauth.ProviderTokens, error) {
	responses := map[string]string{"USERNAME": email}
	responses[challengeAnswerKey(challenge)] = code
	if h := p.secretHash(email); h != "" {
		responses["SECRET_HASH"] = h
	}

	out, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      types.ChallengeNameType(challenge),
		ClientId:           aws.String(p.config.ClientID),
		Session:            aws.String(session),
		ChallengeResponses: responses,
	})
	if err != nil {
		return nil, mapChallengeError(err)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("cognito: mfa verification failed: %w", accountauth.ErrMFACodeMismatch)
	}
	return toTokens(out.AuthenticationResult), nil
}

// ProvisionIdentity creates a confirmed pool user with a permanent password
// and returns its sub attribute.
func (p *Provider) ProvisionIdentity(ctx context.Context, email, temporaryPassword string) (string, error) {
	pool := aws.String(p.config.UserPoolID)

	created, err := p.api.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId: pool,
		Username:   aws.String(email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
		},
		TemporaryPassword: aws.String(temporaryPassword),
		MessageAction:     types.MessageActionTypeSuppress,
	})
	if err != nil {
		return "", mapError("create user", err)
	}
	sub := subject(created.User)
	if sub == "" {
		return "", errors.New("cognito: created user has no sub attribute")
	}

	if _, err := p.api.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: pool,
		Username:   aws.String(email),
		Password:   aws.String(temporaryPassword),
		Permanent:  true,
	}); err != nil {
		return "", mapError("set password", err)
	}

	if _, err := p.api.AdminEnableUser(ctx, &cip.AdminEnableUserInput{
		UserPoolId: pool,
		Username:   aws.String(email),
	}); err != nil {
		return "", mapError("enable user", err)
	}
	return sub, nil
}

func challengeAnswerKey(challenge string) string {
	switch types.ChallengeNameType(challenge) {
	case types.ChallengeNameTypeSmsMfa:
		return "SMS_MFA_CODE"
	case types.ChallengeNameTypeSoftwareTokenMfa:
		return "SOFTWARE_TOKEN_MFA_CODE"
	case types.ChallengeNameTypeCustomChallenge:
		return "ANSWER"
	default:
		return "EMAIL_OTP_CODE"
	}
}

func subject(u *types.UserType) string {
	if u == nil {
		return ""
	}
	for _, attr := range u.Attributes {
		if aws.ToString(attr.Name) == "sub" {
			return aws.ToString(attr.Value)
		}
	}
	return ""
}

func toTokens(r *types.AuthenticationResultType) *accountauth.ProviderTokens {
	return &accountauth.ProviderTokens{
		IDToken:      aws.ToString(r.IdToken),
		AccessToken:  aws.ToString(r.AccessToken),
		RefreshToken: aws.ToString(r.RefreshToken),
		ExpiresIn:    r.ExpiresIn,
	}
}

// mapError wraps Cognito API errors with the accountauth sentinel the
// engine maps to a response.
func mapError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("cognito %s: %w", op, err)
	}
	var sentinel error
	switch apiErr.ErrorCode() {
	case "CodeMismatchException":
		sentinel = accountauth.ErrMFACodeMismatch
	case "ExpiredCodeException":
		sentinel = accountauth.ErrMFACodeExpired
	case "InvalidParameterException":
		sentinel = accountauth.ErrMFAInvalidParameter
	case "NotAuthorizedException", "UserNotFoundException":
		sentinel = accountauth.ErrMFACredentials
	default:
		return fmt.Errorf("cognito %s: %w", op, err)
	}
	return fmt.Errorf("cognito %s: %w: %w", op, sentinel, err)
}

// mapChallengeError treats a rejected challenge response as a wrong code.
// Cognito answers NotAuthorizedException there, which elsewhere means bad
// credentials.
func mapChallengeError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotAuthorizedException" {
		return fmt.Errorf("cognito respond to challenge: %w: %w", accountauth.ErrMFACodeMismatch, err)
	}
	return mapError("respond to challenge", err)
}

var _ accountauth.MFAProvider = (*Provider)(nil)
