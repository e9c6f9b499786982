package packets

type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8"`
	FullName    *string `json:"fullName"`
	CompanyName *string `json:"companyName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FullName    *string `json:"fullName"`
	CompanyName *string `json:"companyName"`
}
