package requests

type LoginCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type VerifyLoginCodeRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Otp      string `json:"otp" validate:"required,len=6,numeric"`
	PreToken string `json:"pre_token" validate:"required"`
}
